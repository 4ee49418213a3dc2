// Package cache stores ranked match results keyed by client and fingerprint.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/pkg/metrics"
)

// entry is the single live result for a client.
type entry struct {
	fingerprint string
	result      *model.RankedMatchResult
	expiresAt   time.Time
}

// Info describes the live entry for a client.
type Info struct {
	Key       string
	Exists    bool
	TTL       time.Duration
	Fallback  bool
	ExpiresAt time.Time
}

// InMemoryCache holds at most one entry per client. Expiry is checked lazily
// on read under the same lock that evicts, so no reader observes an expired entry.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	closed  bool
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *InMemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewInMemoryCache creates an empty cache.
func NewInMemoryCache(opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the result stored for exactly (clientID, fingerprint)
// if it has not expired.
func (c *InMemoryCache) Get(_ context.Context, clientID, fingerprint string) (*model.RankedMatchResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrUnavailable
	}

	e, ok := c.live(clientID)
	if !ok || e.fingerprint != fingerprint {
		metrics.RecordCacheMiss()
		return nil, false, nil
	}
	metrics.RecordCacheHit()
	return e.result.Clone(), true, nil
}

// Put stores result for clientID, replacing any previous entry for that client.
func (c *InMemoryCache) Put(_ context.Context, clientID, fingerprint string, result *model.RankedMatchResult, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}
	c.entries[clientID] = entry{
		fingerprint: fingerprint,
		result:      result.Clone(),
		expiresAt:   c.now().Add(ttl),
	}
	metrics.UpdateCacheEntries(len(c.entries))
	return nil
}

// Invalidate removes the entry for clientID.
func (c *InMemoryCache) Invalidate(_ context.Context, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}
	if _, ok := c.entries[clientID]; ok {
		delete(c.entries, clientID)
		metrics.UpdateCacheEntries(len(c.entries))
	}
	return nil
}

// Info reports the live entry for clientID, if any.
func (c *InMemoryCache) Info(_ context.Context, clientID string) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Info{}, ErrUnavailable
	}
	e, ok := c.live(clientID)
	if !ok {
		return Info{}, nil
	}
	return Info{
		Key:       Key(clientID, e.fingerprint),
		Exists:    true,
		TTL:       e.expiresAt.Sub(c.now()),
		Fallback:  e.result.Fallback,
		ExpiresAt: e.expiresAt,
	}, nil
}

// Purge drops every entry.
func (c *InMemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	metrics.UpdateCacheEntries(0)
}

// Sweep evicts every expired entry and returns how many were dropped.
func (c *InMemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			metrics.RecordCacheExpired()
			dropped++
		}
	}
	metrics.UpdateCacheEntries(len(c.entries))
	return dropped
}

// Len returns the number of stored entries, expired ones included until read.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops every entry; later calls return ErrUnavailable.
func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.closed = true
	metrics.UpdateCacheEntries(0)
	return nil
}

// live returns the unexpired entry for clientID, evicting it if expired.
// Must be called with c.mu held.
func (c *InMemoryCache) live(clientID string) (entry, bool) {
	e, ok := c.entries[clientID]
	if !ok {
		return entry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, clientID)
		metrics.RecordCacheExpired()
		metrics.UpdateCacheEntries(len(c.entries))
		return entry{}, false
	}
	return e, true
}
