// Package embedder contains embedding.Provider implementations.
package embedder

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/internal/domain/normalize"
	"github.com/okian/coachmatch/pkg/metrics"
)

// Hashing is an offline provider that projects keyword tokens into a fixed
// number of buckets (the hashing trick). Texts sharing keywords get a positive
// cosine; the output is deterministic across processes.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing provider producing vectors of dims entries.
func NewHashing(dims int) (*Hashing, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("hashing embedder: dimensions must be positive, got %d", dims)
	}
	return &Hashing{dims: dims}, nil
}

// Embed implements embedding.Provider.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.RecordEmbeddingTexts(len(texts))

	out := make([]embedding.Vector, len(texts))
	for i, t := range texts {
		v := make(embedding.Vector, h.dims)
		for _, tok := range normalize.Keywords(t) {
			sum := xxhash.Sum64String(tok)
			bucket := int(sum % uint64(h.dims))
			if sum&(1<<63) != 0 {
				v[bucket]--
			} else {
				v[bucket]++
			}
		}
		out[i] = embedding.Normalize(v)
	}
	metrics.RecordEmbeddingCall(metrics.EmbedSuccess)
	return out, nil
}
