package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/gmellier/fontdrop/internal/domain"
)

type stubUploadRepository struct {
	rows    []domain.Upload
	nextID  int
	listErr error
}

func (s *stubUploadRepository) CreateUpload(ctx context.Context, up *domain.Upload) (string, error) {
	s.nextID++
	id := "upload-" + strconv.Itoa(s.nextID)
	stored := *up
	stored.ID = id
	s.rows = append(s.rows, stored)
	return id, nil
}

func (s *stubUploadRepository) ListUploadsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Upload, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Upload, 0)
	for _, row := range s.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService(repo *stubUploadRepository) Service {
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIngestRecordsTrueDigestAndLength(t *testing.T) {
	payload := []byte("glyph outline data \x00\x01\x02 with binary noise")
	want := sha256.Sum256(payload)

	repo := &stubUploadRepository{}
	svc := newTestService(repo)

	up, err := svc.Ingest(context.Background(), "user-1", "font.ttf", "font/ttf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if up.SHA256 != hex.EncodeToString(want[:]) {
		t.Fatalf("digest mismatch: got %s", up.SHA256)
	}
	if up.Bytes != int64(len(payload)) {
		t.Fatalf("byte count mismatch: got %d want %d", up.Bytes, len(payload))
	}
	if up.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestIngestSameBytesTwiceKeepsBothRows(t *testing.T) {
	payload := []byte("identical bytes")
	repo := &stubUploadRepository{}
	svc := newTestService(repo)

	first, err := svc.Ingest(context.Background(), "user-1", "a.ttf", "font/ttf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := svc.Ingest(context.Background(), "user-1", "a.ttf", "font/ttf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %s", first.ID)
	}
	if first.SHA256 != second.SHA256 {
		t.Fatalf("expected identical digests: %s vs %s", first.SHA256, second.SHA256)
	}
	if len(repo.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(repo.rows))
	}
}

func TestIngestStreamFailureWritesNothing(t *testing.T) {
	repo := &stubUploadRepository{}
	svc := newTestService(repo)

	broken := io.MultiReader(strings.NewReader("partial"), errReader{})
	if _, err := svc.Ingest(context.Background(), "user-1", "b.ttf", "font/ttf", broken); err == nil {
		t.Fatal("expected stream error")
	}
	if len(repo.rows) != 0 {
		t.Fatalf("partial row written: %d rows", len(repo.rows))
	}
}

func TestListClampsLimitAndOffset(t *testing.T) {
	repo := &stubUploadRepository{}
	svc := newTestService(repo)
	for i := 0; i < 5; i++ {
		if _, err := svc.Ingest(context.Background(), "user-1", "f.ttf", "font/ttf", strings.NewReader("x")); err != nil {
			t.Fatalf("seed ingest: %v", err)
		}
	}

	cases := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"zero limit", 0, 0, 1, 0},
		{"negative limit", -3, 0, 1, 0},
		{"oversized limit", 500, 0, ListLimitMax, 0},
		{"negative offset", 10, -5, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, limit, offset, err := svc.List(context.Background(), "user-1", tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Fatalf("got limit=%d offset=%d, want limit=%d offset=%d", limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}

func TestListScopedToOwner(t *testing.T) {
	repo := &stubUploadRepository{}
	svc := newTestService(repo)
	if _, err := svc.Ingest(context.Background(), "user-1", "mine.ttf", "font/ttf", strings.NewReader("a")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), "user-2", "theirs.ttf", "font/ttf", strings.NewReader("b")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	uploads, _, _, err := svc.List(context.Background(), "user-1", 50, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(uploads) != 1 || uploads[0].Filename != "mine.ttf" {
		t.Fatalf("unexpected rows: %+v", uploads)
	}
}

func TestListPropagatesStoreFailure(t *testing.T) {
	repo := &stubUploadRepository{listErr: errors.New("connection reset")}
	svc := newTestService(repo)
	if _, _, _, err := svc.List(context.Background(), "user-1", 50, 0); err == nil {
		t.Fatal("expected error")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("stream aborted") }
