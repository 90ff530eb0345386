package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gmellier/fontdrop/internal/apperror"
	"github.com/gmellier/fontdrop/internal/domain"
	"github.com/gmellier/fontdrop/internal/product"
	jwtpkg "github.com/gmellier/fontdrop/pkg/jwt"
)

type claimsKey struct{}

type contextSetter interface {
	SetContext(context.Context)
}

// RequireAuth ensures the request carries a valid bearer token before the
// handler runs. The verified claims are attached to the request context.
// Verification failures are reported uniformly: the client never learns
// whether the token was malformed, mis-signed, or expired.
func (rt *Router) RequireAuth(next product.HandlerFunc) product.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			rt.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			return apperror.Unauthorized("Missing bearer token")
		}
		claims, err := rt.auth.Authorize(req.Context(), token)
		if err != nil {
			rt.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
			return apperror.Unauthorized("Invalid token")
		}
		ctx := context.WithValue(req.Context(), claimsKey{}, claims)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		return next(w, req.WithContext(ctx))
	}
}

// RequireAdmin composes RequireAuth and additionally demands the admin role.
// The bearer parsing lives only in RequireAuth.
func (rt *Router) RequireAdmin(next product.HandlerFunc) product.HandlerFunc {
	return rt.RequireAuth(func(w http.ResponseWriter, req *http.Request) error {
		claims, ok := ClaimsFromContext(req.Context())
		if !ok || claims.Role != domain.RoleAdmin {
			return apperror.Forbidden("Admin only")
		}
		return next(w, req)
	})
}

// ClaimsFromContext extracts the authenticated token claims from context.
func ClaimsFromContext(ctx context.Context) (*jwtpkg.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwtpkg.Claims)
	return claims, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
