// Package server exposes the HTTP API: health, status, metrics, and the admin
// cycle trigger. It includes permissive CORS for development and injects
// correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"database/sql"

	"github.com/onnwee/replyt/bot"
	"github.com/onnwee/replyt/config"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	bot *bot.Service
	ctx context.Context
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, db *sql.DB, cfg *config.Config, svc *bot.Service) *Handlers {
	return &Handlers{db: db, cfg: cfg, bot: svc, ctx: ctx}
}
