package jwt

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "admin", "admin@font.local", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("unexpected subject: %q", claims.UserID())
	}
	if claims.Role != "admin" {
		t.Fatalf("unexpected role: %q", claims.Role)
	}
	if claims.Email != "admin@font.local" {
		t.Fatalf("unexpected email: %q", claims.Email)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Fatalf("unexpected expiry: %v", claims.ExpiresAt)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken("user-1", "user", "u@font.local", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if _, err := Parse(token, "secret"); !errors.Is(err, jwtlib.ErrTokenExpired) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "user", "u@font.local", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if _, err := Parse(token, "other-secret"); err == nil {
		t.Fatal("expected signature error, got nil")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-token", "secret"); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}
