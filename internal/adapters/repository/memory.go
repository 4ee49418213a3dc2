package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/okian/coachmatch/internal/domain/model"
)

// MemoryStore is an in-process Store. Values are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]model.ClientFeatureSet
	coaches map[string]model.CoachFeatureSet
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]model.ClientFeatureSet),
		coaches: make(map[string]model.CoachFeatureSet),
	}
}

// GetClient implements Store.
func (s *MemoryStore) GetClient(_ context.Context, clientID string) (*model.ClientFeatureSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	out := copyClient(c)
	return &out, nil
}

// ListActiveCoaches implements Store.
func (s *MemoryStore) ListActiveCoaches(_ context.Context) ([]model.CoachFeatureSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.CoachFeatureSet, 0, len(s.coaches))
	for _, c := range s.coaches {
		if c.Active {
			out = append(out, copyCoach(c))
		}
	}
	slices.SortFunc(out, func(a, b model.CoachFeatureSet) int {
		return strings.Compare(a.CoachID, b.CoachID)
	})
	return out, nil
}

// UpsertClient implements Store.
func (s *MemoryStore) UpsertClient(_ context.Context, c *model.ClientFeatureSet) error {
	if c == nil || c.ClientID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.clients[c.ClientID] = copyClient(*c)
	return nil
}

// UpsertCoach implements Store.
func (s *MemoryStore) UpsertCoach(_ context.Context, c *model.CoachFeatureSet) error {
	if c == nil || c.CoachID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.coaches[c.CoachID] = copyCoach(*c)
	return nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), len(s.coaches), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyClient(c model.ClientFeatureSet) model.ClientFeatureSet {
	c.TargetCountries = slices.Clone(c.TargetCountries)
	c.CulturalGoals = slices.Clone(c.CulturalGoals)
	c.PreferredLanguages = slices.Clone(c.PreferredLanguages)
	c.SpecificChallenges = slices.Clone(c.SpecificChallenges)
	return c
}

func copyCoach(c model.CoachFeatureSet) model.CoachFeatureSet {
	c.Expertise = slices.Clone(c.Expertise)
	c.Languages = slices.Clone(c.Languages)
	c.Countries = slices.Clone(c.Countries)
	c.Availability = slices.Clone(c.Availability)
	return c
}
