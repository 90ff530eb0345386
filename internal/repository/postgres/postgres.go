package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmellier/fontdrop/internal/domain"
	"github.com/gmellier/fontdrop/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.UploadRepository = (*Repository)(nil)
)

// UpsertUser inserts a user or refreshes password hash and role on email
// conflict. Returns the row id. Used by the seed command.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.User) (string, error) {
	const query = `INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
		RETURNING id`
	row := r.pool.QueryRow(ctx, query, user.Email, user.PasswordHash, user.Role)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUpload inserts an upload metadata row and returns the generated id.
func (r *Repository) CreateUpload(ctx context.Context, upload *domain.Upload) (string, error) {
	const query = `INSERT INTO uploads (user_id, filename, mimetype, bytes, sha256)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	row := r.pool.QueryRow(ctx, query, upload.UserID, upload.Filename, upload.Mimetype, upload.Bytes, upload.SHA256)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// ListUploadsByUser returns the user's uploads, newest first.
func (r *Repository) ListUploadsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Upload, error) {
	const query = `SELECT id, user_id, filename, mimetype, bytes, sha256, created_at
		FROM uploads
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := make([]domain.Upload, 0)
	for rows.Next() {
		var u domain.Upload
		if err := rows.Scan(&u.ID, &u.UserID, &u.Filename, &u.Mimetype, &u.Bytes, &u.SHA256, &u.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
