package loadgen

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid load config")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrMalformed     = errors.New("malformed ranking")
)
