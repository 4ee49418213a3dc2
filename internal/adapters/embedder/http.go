package embedder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

const breakerName = "embedding"

// HTTP calls an OpenAI-compatible embeddings endpoint. Calls are rate limited
// and wrapped in a circuit breaker; an open breaker is reported as
// embedding.ErrUnavailable so callers degrade instead of failing.
type HTTP struct {
	url    string
	apiKey string
	model  string
	dims   int
	client *http.Client
	log    logger.Logger

	rps          float64
	burst        int
	minRequests  uint32
	failureRatio float64
	openTimeout  time.Duration

	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]embedding.Vector]
}

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewHTTP creates a provider posting to url.
func NewHTTP(url string, opts ...Option) *HTTP {
	h := &HTTP{
		url:          url,
		model:        "text-embedding-3-small",
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          logger.Get().Named("embedder"),
		rps:          20,
		burst:        5,
		minRequests:  5,
		failureRatio: 0.6,
		openTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.limiter = rate.NewLimiter(rate.Limit(h.rps), h.burst)
	metrics.UpdateBreakerState(breakerName, stateToFloat(gobreaker.StateClosed))
	h.cb = gobreaker.NewCircuitBreaker[[]embedding.Vector](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     h.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < h.minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= h.failureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.log.Warn(context.Background(), "embedding breaker state change",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, stateToFloat(to))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
	return h
}

// Embed implements embedding.Provider with one request for all texts.
func (h *HTTP) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { metrics.RecordEmbeddingLatency(metrics.Elapsed(start)) }()
	metrics.RecordEmbeddingTexts(len(texts))

	out, err := h.cb.Execute(func() ([]embedding.Vector, error) {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", ErrProvider, err)
		}
		return h.call(ctx, texts)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordEmbeddingCall(metrics.EmbedRejected)
		return nil, fmt.Errorf("%w: %w", embedding.ErrUnavailable, err)
	case err != nil:
		metrics.RecordEmbeddingCall(metrics.EmbedFailure)
		return nil, err
	}
	metrics.RecordEmbeddingCall(metrics.EmbedSuccess)
	return out, nil
}

func (h *HTTP) call(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	body, err := json.Marshal(embedRequest{Model: h.model, Input: texts, Dimensions: h.dims})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrProvider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrProvider, err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProvider, len(decoded.Data), len(texts))
	}

	out := make([]embedding.Vector, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProvider, d.Index)
		}
		out[d.Index] = embedding.Vector(d.Embedding)
	}
	return out, nil
}

// State reports the breaker state, e.g. for the stats endpoint.
func (h *HTTP) State() string { return h.cb.State().String() }

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
