package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"log/slog"

	"github.com/gmellier/fontdrop/internal/domain"
	"github.com/gmellier/fontdrop/internal/repository"
)

// List clamp bounds. Requests outside the window are pulled back in rather
// than rejected.
const (
	ListLimitDefault = 50
	ListLimitMax     = 200
)

// Service ingests file streams and records their metadata.
type Service struct {
	uploads repository.UploadRepository
	logger  *slog.Logger
}

// New constructs a Service.
func New(uploads repository.UploadRepository, logger *slog.Logger) Service {
	return Service{uploads: uploads, logger: logger}
}

// Digest streams body through a SHA-256 digest and byte counter. Memory use
// is bounded by io.Copy's chunk size, not the stream length.
func Digest(body io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, body)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Ingest hashes the stream and persists one metadata row for it. The row is
// written only after the stream has been fully consumed, so a broken stream
// never leaves a partial record. Identical bytes always produce a fresh row:
// the hash is recorded for audit, not deduplication.
func (s Service) Ingest(ctx context.Context, userID, filename, mimetype string, body io.Reader) (*domain.Upload, error) {
	sum, n, err := Digest(body)
	if err != nil {
		return nil, err
	}

	up := &domain.Upload{
		UserID:   userID,
		Filename: filename,
		Mimetype: mimetype,
		Bytes:    n,
		SHA256:   sum,
	}
	id, err := s.uploads.CreateUpload(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	up.ID = id

	s.logger.Info("upload recorded", "upload_id", id, "user_id", userID, "bytes", n, "sha256", sum)
	return up, nil
}

// List returns the user's uploads newest first, with limit clamped to
// [1, ListLimitMax] and offset clamped to >= 0. The effective values are
// returned so the handler can echo them.
func (s Service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Upload, int, int, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > ListLimitMax {
		limit = ListLimitMax
	}
	if offset < 0 {
		offset = 0
	}
	uploads, err := s.uploads.ListUploadsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, limit, offset, nil
}
