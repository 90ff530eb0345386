package repository

import (
	"context"

	"github.com/gmellier/fontdrop/internal/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	UpsertUser(ctx context.Context, user *domain.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// UploadRepository persists upload metadata.
type UploadRepository interface {
	CreateUpload(ctx context.Context, upload *domain.Upload) (string, error)
	ListUploadsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Upload, error)
}
