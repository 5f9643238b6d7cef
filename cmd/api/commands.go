package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"project-workspace-api/internal/config"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/identity"
)

type MigrateCmd struct {
	Retries int `help:"Connection attempts before giving up." default:"5"`
}

func (m *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := initLogger(cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrateWithRetry(db, logger, m.Retries); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// TokenCmd signs a bearer token with the configured secret for local testing.
type TokenCmd struct {
	UserID string        `arg:"" help:"User id (uuid) to embed as the subject."`
	Email  string        `help:"Email claim."`
	Name   string        `help:"Display name claim."`
	TTL    time.Duration `help:"Token lifetime." default:"24h"`
}

func (t *TokenCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("no jwt secret configured (DATA_SERVICE_KEY)")
	}
	userID, err := uuid.Parse(t.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	token, err := identity.NewJWTValidator(cfg.Auth.JWTSecret, "").Issue(identity.Identity{
		UserID: userID,
		Email:  t.Email,
		Name:   t.Name,
	}, t.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
