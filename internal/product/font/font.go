// Package font is the FONT product surface: authenticated file ingestion,
// listing, analysis and sharing on top of the platform core.
package font

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/gmellier/fontdrop/internal/apperror"
	httpx "github.com/gmellier/fontdrop/internal/http"
	"github.com/gmellier/fontdrop/internal/product"
	"github.com/gmellier/fontdrop/internal/service/upload"
)

// Per-route fixed-window budgets, all over one minute.
const (
	rateLimitUpload  = 30
	rateLimitList    = 60
	rateLimitShare   = 60
	rateLimitAnalyze = 15

	rateWindow = time.Minute
)

type handlers struct {
	uploads  upload.Service
	logger   *slog.Logger
	maxBytes int64
}

// New builds the FONT product. maxBytes caps a single upload body.
func New(uploads upload.Service, logger *slog.Logger, maxBytes int64) product.Product {
	h := &handlers{uploads: uploads, logger: logger, maxBytes: maxBytes}
	return product.Product{
		ID:       "font",
		Name:     "FONT",
		BasePath: "",
		Register: h.register,
	}
}

func (h *handlers) register(r product.Registrar) {
	r.Handle("/me", r.RequireAuth(h.handleMe))
	r.Handle("/admin/ping", r.RequireAdmin(h.handleAdminPing))
	r.Handle("/upload", r.RequireAuth(r.RateLimit("/upload", rateLimitUpload, rateWindow, h.handleUpload)))
	r.Handle("/uploads", r.RequireAuth(r.RateLimit("/uploads", rateLimitList, rateWindow, h.handleListUploads)))
	r.Handle("/analyze", r.RequireAuth(r.RateLimit("/analyze", rateLimitAnalyze, rateWindow, h.handleAnalyze)))
	r.Handle("/share", r.RequireAuth(r.RateLimit("/share", rateLimitShare, rateWindow, h.handleShare)))
}

func (h *handlers) handleMe(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet {
		return apperror.NotFound("Route not found")
	}
	claims, ok := httpx.ClaimsFromContext(req.Context())
	if !ok {
		return apperror.Unauthorized("Missing bearer token")
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"sub":   claims.UserID(),
			"role":  claims.Role,
			"email": claims.Email,
		},
	})
	return nil
}

func (h *handlers) handleAdminPing(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet {
		return apperror.NotFound("Route not found")
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	return nil
}

// handleUpload streams the first file part of a multipart body through the
// digest without buffering it, then persists the metadata row.
func (h *handlers) handleUpload(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return apperror.NotFound("Route not found")
	}
	claims, ok := httpx.ClaimsFromContext(req.Context())
	if !ok {
		return apperror.Unauthorized("Missing bearer token")
	}

	req.Body = http.MaxBytesReader(w, req.Body, h.maxBytes)
	part, err := firstFilePart(req)
	if err != nil {
		return err
	}
	defer part.Close()

	mimetype := part.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}
	up, err := h.uploads.Ingest(req.Context(), claims.UserID(), part.FileName(), mimetype, part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.BadRequest("File too large")
		}
		return err
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"upload_id": up.ID,
		"file": map[string]any{
			"filename": up.Filename,
			"mimetype": up.Mimetype,
			"bytes":    up.Bytes,
			"sha256":   up.SHA256,
		},
	})
	return nil
}

func (h *handlers) handleListUploads(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet {
		return apperror.NotFound("Route not found")
	}
	claims, ok := httpx.ClaimsFromContext(req.Context())
	if !ok {
		return apperror.Unauthorized("Missing bearer token")
	}

	limit := queryInt(req, "limit", upload.ListLimitDefault)
	offset := queryInt(req, "offset", 0)
	uploads, limit, offset, err := h.uploads.List(req.Context(), claims.UserID(), limit, offset)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"uploads": uploads,
		"limit":   limit,
		"offset":  offset,
	})
	return nil
}

// handleAnalyze accepts a PDF and returns an analysis ticket. Extraction is
// not implemented yet; the ticket id lets clients poll once it is.
func (h *handlers) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return apperror.NotFound("Route not found")
	}
	if _, ok := httpx.ClaimsFromContext(req.Context()); !ok {
		return apperror.Unauthorized("Missing bearer token")
	}

	req.Body = http.MaxBytesReader(w, req.Body, h.maxBytes)
	part, err := firstFilePart(req)
	if err != nil {
		return err
	}
	defer part.Close()

	mimetype := part.Header.Get("Content-Type")
	if mimetype != "application/pdf" && !strings.HasSuffix(strings.ToLower(part.FileName()), ".pdf") {
		return apperror.BadRequest("Only PDF files are supported")
	}
	sum, size, err := upload.Digest(part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.BadRequest("File too large")
		}
		return err
	}

	analysisID := uuid.NewString()
	h.logger.Info("analysis requested", "analysis_id", analysisID, "filename", part.FileName(), "bytes", size)

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"analysis_id": analysisID,
		"filename":    part.FileName(),
		"bytes":       size,
		"sha256":      sum,
		"status":      "pending",
	})
	return nil
}

func (h *handlers) handleShare(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return apperror.NotFound("Route not found")
	}
	if _, ok := httpx.ClaimsFromContext(req.Context()); !ok {
		return apperror.Unauthorized("Missing bearer token")
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	return nil
}

// firstFilePart walks the multipart stream until it finds a part carrying a
// filename. Field parts without a file are skipped.
func firstFilePart(req *http.Request) (*multipart.Part, error) {
	reader, err := req.MultipartReader()
	if err != nil {
		return nil, apperror.BadRequest("Expected multipart/form-data")
	}
	for {
		part, err := reader.NextPart()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, apperror.BadRequest("File too large")
			}
			return nil, apperror.BadRequest("Missing file")
		}
		if part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func queryInt(req *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(req.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
