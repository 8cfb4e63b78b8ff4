// Package identity resolves people owned by the surrounding application.
package identity

import (
	"context"
	"fmt"

	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// Directory looks identities up by id. Unknown ids are absent from the result.
type Directory interface {
	Lookup(ctx context.Context, ids []string) (map[string]model.Identity, error)
}

// StoreDirectory reads identities from the people table
type StoreDirectory struct {
	store db.PersonStore
}

// NewStoreDirectory creates a directory backed by a person store
func NewStoreDirectory(store db.PersonStore) *StoreDirectory {
	return &StoreDirectory{store: store}
}

// Lookup returns the identities among ids that exist
func (d *StoreDirectory) Lookup(ctx context.Context, ids []string) (map[string]model.Identity, error) {
	out := make(map[string]model.Identity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	people, err := d.store.GetPeople(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch people: %w", err)
	}
	for _, p := range people {
		out[p.ID] = model.Identity{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Role:      model.ParseRole(p.Role),
		}
	}
	return out, nil
}
