package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/okian/coachmatch/internal/domain/model"
)

// Seed is the on-disk fixture format.
type Seed struct {
	Clients []model.ClientFeatureSet `json:"clients"`
	Coaches []model.CoachFeatureSet  `json:"coaches"`
}

// LoadSeed reads a JSON fixture from path and upserts every profile into s.
// Profiles that fail validation are rejected as a whole file.
func LoadSeed(ctx context.Context, s Store, path string) (clients, coaches int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, 0, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return Apply(ctx, s, &seed)
}

// Apply validates and stores every profile in seed.
func Apply(ctx context.Context, s Store, seed *Seed) (int, int, error) {
	for i := range seed.Clients {
		if err := seed.Clients[i].Validate(); err != nil {
			return 0, 0, fmt.Errorf("seed client %d: %w", i, err)
		}
	}
	for i := range seed.Coaches {
		if err := seed.Coaches[i].Validate(); err != nil {
			return 0, 0, fmt.Errorf("seed coach %d: %w", i, err)
		}
	}
	for i := range seed.Clients {
		if err := s.UpsertClient(ctx, &seed.Clients[i]); err != nil {
			return 0, 0, err
		}
	}
	for i := range seed.Coaches {
		if err := s.UpsertCoach(ctx, &seed.Coaches[i]); err != nil {
			return len(seed.Clients), 0, err
		}
	}
	return len(seed.Clients), len(seed.Coaches), nil
}
