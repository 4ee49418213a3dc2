package cache

import "errors"

// Sentinel errors for the result cache.
var (
	ErrUnavailable = errors.New("result cache unavailable")
	ErrInvalidTTL  = errors.New("cache ttl must be positive")
)
