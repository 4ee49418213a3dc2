package embedder

import "errors"

// ErrProvider marks a failed call to the remote embedding service.
var ErrProvider = errors.New("embedding provider error")
