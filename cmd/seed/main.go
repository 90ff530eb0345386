package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmellier/fontdrop/internal/domain"
	"github.com/gmellier/fontdrop/internal/repository/postgres"
	"github.com/gmellier/fontdrop/pkg/config"
	"github.com/gmellier/fontdrop/pkg/crypto"
	"github.com/gmellier/fontdrop/pkg/logger"
)

// Seeds the bootstrap admin account. Safe to run repeatedly: the upsert
// refreshes the password hash and role on an existing row.
func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("seed", slog.LevelInfo)

	email := config.GetString("SEED_ADMIN_EMAIL", "admin@font.local")
	password := config.GetString("SEED_ADMIN_PASSWORD", "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	hash, err := crypto.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	id, err := repo.UpsertUser(ctx, &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		log.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	log.Info("admin user ready", "id", id, "email", email)
}
