package service

import "errors"

// Data errors surfaced to callers. Provider and cache failures never are.
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrInvalidProfile   = errors.New("invalid client profile")
	ErrStoreUnavailable = errors.New("profile store unavailable")
)
