package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/gmellier/fontdrop/internal/apperror"
	"github.com/gmellier/fontdrop/internal/repository"
	"github.com/gmellier/fontdrop/pkg/config"
	"github.com/gmellier/fontdrop/pkg/crypto"
	jwtpkg "github.com/gmellier/fontdrop/pkg/jwt"
)

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Login verifies the credentials and returns a signed access token.
// Credential failures are deliberately uniform: the caller cannot tell a
// missing account from a wrong password.
func (s Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", apperror.BadRequest("email and password required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperror.Unauthorized("Invalid credentials")
		}
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if err := crypto.VerifyPassword(user.PasswordHash, password); err != nil {
		return "", apperror.Unauthorized("Invalid credentials")
	}

	token, err := jwtpkg.GenerateToken(user.ID, user.Role, user.Email, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Authorize validates a bearer token and returns its claims. The token is
// self-contained: no store lookup happens here, so a token outlives its user
// until expiry.
func (s Service) Authorize(_ context.Context, token string) (*jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errors.New("token required")
	}
	return jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
}
