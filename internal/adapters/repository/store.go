// Package repository provides the profile store the matching engine reads from.
package repository

import (
	"context"

	"github.com/okian/coachmatch/internal/domain/model"
)

// Store provides read/write access to client and coach profiles.
type Store interface {
	// GetClient returns the client snapshot.
	// Returns ErrNotFound if the client is unknown.
	GetClient(ctx context.Context, clientID string) (*model.ClientFeatureSet, error)

	// ListActiveCoaches returns every coach flagged active, ordered by coach id.
	ListActiveCoaches(ctx context.Context) ([]model.CoachFeatureSet, error)

	// UpsertClient inserts or replaces a client.
	UpsertClient(ctx context.Context, c *model.ClientFeatureSet) error

	// UpsertCoach inserts or replaces a coach.
	UpsertCoach(ctx context.Context, c *model.CoachFeatureSet) error

	// Counts returns the number of stored clients and coaches.
	Counts(ctx context.Context) (clients, coaches int, err error)

	Close() error
}
