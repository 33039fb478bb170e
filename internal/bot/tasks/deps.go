// Package tasks implements the scheduled maintenance tasks run by the
// bot's cron scheduler.
package tasks

import (
	"log/slog"

	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
)

// TaskDeps contains the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
