package embedder

import (
	"net/http"
	"time"

	"github.com/okian/coachmatch/pkg/logger"
)

// Option configures an HTTP provider.
type Option func(*HTTP)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(h *HTTP) { h.apiKey = key }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(h *HTTP) {
		if model != "" {
			h.model = model
		}
	}
}

// WithDimensions requests vectors of a given size. Zero leaves it to the server.
func WithDimensions(n int) Option {
	return func(h *HTTP) {
		if n >= 0 {
			h.dims = n
		}
	}
}

// WithRateLimit bounds outgoing calls per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *HTTP) {
		if rps > 0 && burst > 0 {
			h.rps, h.burst = rps, burst
		}
	}
}

// WithBreaker sets the circuit breaker thresholds. The breaker opens once at
// least minRequests calls were seen and the failure ratio reaches ratio.
func WithBreaker(minRequests uint32, ratio float64, openFor time.Duration) Option {
	return func(h *HTTP) {
		if minRequests > 0 {
			h.minRequests = minRequests
		}
		if ratio > 0 && ratio <= 1 {
			h.failureRatio = ratio
		}
		if openFor > 0 {
			h.openTimeout = openFor
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(h *HTTP) {
		if l != nil {
			h.log = l
		}
	}
}
