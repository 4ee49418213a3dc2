// Package embedding defines the text embedding provider contract and vector math.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned by providers that cannot serve requests right now
// (not configured, or circuit open). Callers degrade to neutral vectors.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Vector is a dense embedding. A nil or empty Vector is neutral.
type Vector []float64

// Neutral reports whether v carries no signal.
func (v Vector) Neutral() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Provider turns texts into vectors. Implementations return one vector per
// input text, in input order, from a single batched call.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, texts []string) ([]Vector, error)

// Embed calls f.
func (f ProviderFunc) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	return f(ctx, texts)
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Neutral or mismatched vectors score 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v Vector) Vector {
	var n float64
	for _, x := range v {
		n += x * x
	}
	if n == 0 {
		return v
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] /= n
	}
	return v
}
