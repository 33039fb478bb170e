package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config holds all application configuration, loaded from config.yaml and
// BOT_* environment variables.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Backup    BackupConfig    `mapstructure:"backup"`
	History   HistoryConfig   `mapstructure:"history"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Timezone  string          `mapstructure:"timezone" validate:"required"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds bot credentials and admin identity.
type TelegramConfig struct {
	Token       string `mapstructure:"token" validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`

	// BotInfo is populated at startup from GetMe, not from the config file.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig holds the SQLite connection settings for the online store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CacheConfig bounds the in-process message cache.
type CacheConfig struct {
	Capacity int `mapstructure:"capacity" validate:"gt=0"`
}

// ArchiveConfig configures the Google Sheets cold archive client.
type ArchiveConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	SpreadsheetID  string        `mapstructure:"spreadsheet_id" validate:"required"`
	Token          string        `mapstructure:"token" validate:"required"`
	Epoch          string        `mapstructure:"epoch" validate:"required"` // first partition month, YYYY-MM
	ScanWorkers    int           `mapstructure:"scan_workers" validate:"gt=0,lte=10"`
	RatePerSecond  float64       `mapstructure:"rate_per_second" validate:"gt=0"`
	ScanCacheTTL   time.Duration `mapstructure:"scan_cache_ttl" validate:"min=1s"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
}

// BackupConfig controls the rolling drain-to-archive cycle.
type BackupConfig struct {
	Interval      time.Duration `mapstructure:"interval" validate:"min=1m"`
	GracePeriod   time.Duration `mapstructure:"grace_period" validate:"min=1s"`
	Threshold     int           `mapstructure:"threshold" validate:"gt=0"`
	CheckEvery    int           `mapstructure:"check_every" validate:"gt=0"`
	WriteQueueLen int           `mapstructure:"write_queue_len" validate:"gt=0"`
}

// HistoryConfig bounds merged history queries.
type HistoryConfig struct {
	MaxResults int `mapstructure:"max_results" validate:"gt=0"`
}

// SchedulerConfig lists cron-driven maintenance tasks keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a registered task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`

	// MaxAge applies to tasks that prune by age (stale_cleanup).
	MaxAge time.Duration `mapstructure:"max_age"`
}
