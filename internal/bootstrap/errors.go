package bootstrap

import "errors"

var (
	ErrMissingDBURL   = errors.New("DATABASE_URL is required for JOURNAL_BACKEND=pg")
	ErrUnknownBackend = errors.New("unknown backend")
)
