package constants

import "time"

const (
	RefreshInterval     = 10 * time.Minute
	RainbetStartupDelay = 5 * time.Second
	InterFetchDelay     = 2 * time.Second
)

const (
	MaxRetries       = 3
	AttemptTimeout   = 30 * time.Second
	RateLimitWait    = 30 * time.Second
	RetryDelay       = 2 * time.Second
	OnDemandTimeout  = 3 * time.Minute
	DefaultUserAgent = "Mozilla/5.0 (compatible; LeaderboardAPI/1.0)"
)

const (
	// 14-day windows counted from 2025-09-18 00:00 UTC
	BiweeklyPeriodLength = 14 * 24 * time.Hour
	RainbetTopN          = 10
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	LogFileMaxSizeMB  = 50
	LogFileMaxBackups = 5
	LogFileMaxAgeDays = 14
)
