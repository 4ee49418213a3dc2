package repository

import "errors"

// Sentinel kinds for profile store errors.
var (
	ErrNotFound       = errors.New("profile not found")
	ErrInvalidID      = errors.New("profile id must not be empty")
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrClosed         = errors.New("profile store closed")
)
