// Package handlers contains the Telegram command, callback, and business
// update handlers together with their registration logic.
package handlers

import (
	"log/slog"

	"github.com/telewatch/telewatch/internal/backup"
	"github.com/telewatch/telewatch/internal/cache"
	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
	"github.com/telewatch/telewatch/internal/history"
	"github.com/telewatch/telewatch/internal/notify"
)

// HandlerDeps provides dependencies for all handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Cache    *cache.Cache
	Writer   *database.AsyncWriter
	Backup   *backup.Manager
	Renderer *notify.Renderer
	History  *history.Service
}
