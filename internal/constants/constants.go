package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// MaxViews bounds the number of live timeline views kept for
	// relayout and point completion.
	MaxViews = 256

	// MaxSessions bounds the per-client annotation caches.
	MaxSessions = 1024

	DefaultChartWidth  = 1024
	DefaultChartHeight = 480
)
