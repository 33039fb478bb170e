// Package config provides configuration loading, defaults, and validation
// for the bot. Values come from a YAML file with BOT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. The YAML file at configPath (optional)
// 3. BOT_* environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything can come from env.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %q: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if _, err := time.Parse("2006-01", cfg.Archive.Epoch); err != nil {
		return nil, fmt.Errorf("invalid archive epoch %q (want YYYY-MM): %w", cfg.Archive.Epoch, err)
	}

	return cfg, nil
}

// Location returns the configured timezone. LoadConfig has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ArchiveEpoch returns the first archive partition month in UTC.
func (c *Config) ArchiveEpoch() time.Time {
	t, err := time.Parse("2006-01", c.Archive.Epoch)
	if err != nil {
		return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("cache.capacity", DefaultCacheCapacity)

	v.SetDefault("archive.base_url", DefaultArchiveBaseURL)
	v.SetDefault("archive.epoch", DefaultArchiveEpoch)
	v.SetDefault("archive.scan_workers", DefaultArchiveScanWorkers)
	v.SetDefault("archive.rate_per_second", DefaultArchiveRatePerSecond)
	v.SetDefault("archive.scan_cache_ttl", DefaultArchiveScanCacheTTL)
	v.SetDefault("archive.request_timeout", DefaultArchiveRequestTimeout)

	v.SetDefault("backup.interval", DefaultBackupInterval)
	v.SetDefault("backup.grace_period", DefaultBackupGracePeriod)
	v.SetDefault("backup.threshold", DefaultBackupThreshold)
	v.SetDefault("backup.check_every", DefaultBackupCheckEvery)
	v.SetDefault("backup.write_queue_len", DefaultBackupWriteQueueLen)

	v.SetDefault("history.max_results", DefaultHistoryMaxResults)

	v.SetDefault("timezone", DefaultTimezone)
}
