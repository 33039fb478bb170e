package config

import "time"

// Default values for optional configuration parameters.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	DefaultDBPath = "storage.db"

	DefaultCacheCapacity = 10000

	DefaultArchiveBaseURL        = "https://sheets.googleapis.com/v4"
	DefaultArchiveEpoch          = "2024-01"
	DefaultArchiveScanWorkers    = 3
	DefaultArchiveRatePerSecond  = 1.0
	DefaultArchiveScanCacheTTL   = 2 * time.Minute
	DefaultArchiveRequestTimeout = 30 * time.Second

	DefaultBackupInterval      = 24 * time.Hour
	DefaultBackupGracePeriod   = time.Minute
	DefaultBackupThreshold     = 3000
	DefaultBackupCheckEvery    = 100
	DefaultBackupWriteQueueLen = 1024

	DefaultHistoryMaxResults = 200

	DefaultTimezone = "Europe/Moscow"
)
