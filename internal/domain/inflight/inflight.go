// Package inflight collapses concurrent computations for the same key into one.
package inflight

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group runs at most one computation per key at a time. Callers that arrive
// while a computation is running wait for and share its result.
//
// The computation runs detached from the caller's cancellation: a caller that
// gives up returns ctx.Err() while the computation finishes for the others.
type Group[T any] struct {
	sf        singleflight.Group
	running   atomic.Int64
	collapsed atomic.Int64
	onChange  func(running int64)
}

// Option configures a Group.
type Option func(*options)

type options struct {
	onChange func(running int64)
}

// WithRunningHook is called with the new number of running computations
// whenever it changes.
func WithRunningHook(fn func(running int64)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// New creates a Group.
func New[T any](opts ...Option) *Group[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Group[T]{onChange: o.onChange}
}

// Do runs fn once per key among concurrent callers. It reports whether this
// caller joined a computation started by another caller.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	leader := false
	detached := context.WithoutCancel(ctx)

	ch := g.sf.DoChan(key, func() (any, error) {
		leader = true
		g.track(1)
		defer g.track(-1)
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return zero, false, fmt.Errorf("waiting for %s: %w", key, ctx.Err())
	case res := <-ch:
		joined := !leader
		if joined {
			g.collapsed.Add(1)
		}
		if res.Err != nil {
			return zero, joined, res.Err
		}
		v, _ := res.Val.(T)
		return v, joined, nil
	}
}

// Running returns the number of computations in progress.
func (g *Group[T]) Running() int64 {
	return g.running.Load()
}

// Collapsed returns how many callers have shared another caller's computation.
func (g *Group[T]) Collapsed() int64 {
	return g.collapsed.Load()
}

func (g *Group[T]) track(delta int64) {
	n := g.running.Add(delta)
	if g.onChange != nil {
		g.onChange(n)
	}
}
