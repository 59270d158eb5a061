package config

import "time"

const (
	DefaultHTTPPort        = "8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultJournalBuffer   = 256
	DefaultSQLitePath      = "data/journal.db"
	DefaultIdempotencyTTL  = 24 * time.Hour
	DefaultPGMaxConns      = 5
	DefaultPGMinConns      = 1
	DefaultPGConnectWait   = 15 * time.Second
)
