package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDHeader is echoed on every response, success or failure, and is
// the only correlation handle the platform offers.
const RequestIDHeader = "x-request-id"

// withRequestID assigns a correlation id at request entry. A caller-supplied
// id is honored so upstream proxies can thread their own.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSpace(req.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(req.Context(), requestIDKey{}, id)
		next(w, req.WithContext(ctx))
	}
}

// RequestIDFromContext returns the correlation id assigned at request entry.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
