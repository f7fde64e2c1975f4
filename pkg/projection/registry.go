package projection

import (
	"context"
	"sync"

	"github.com/mklimuk/notepilot/pkg/note"
)

// Registry keeps one unfiltered projection per owner that has asked for one
// and forwards changes made by other components to it.
type Registry struct {
	store note.Store

	mu      sync.Mutex
	byOwner map[string]*Projection
}

// NewRegistry creates an empty registry over store.
func NewRegistry(store note.Store) *Registry {
	return &Registry{store: store, byOwner: make(map[string]*Projection)}
}

// For returns the projection of ownerID, loading it on first use. Changes
// forwarded while it loads wait for the load to finish.
func (r *Registry) For(ctx context.Context, ownerID string) (*Projection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byOwner[ownerID]; ok {
		return p, nil
	}
	p := New(ownerID, r.store, note.Filter{})
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	r.byOwner[ownerID] = p
	return p, nil
}

// Created forwards a new note to its owner's projection, if loaded.
func (r *Registry) Created(n note.Note) {
	if p := r.lookup(n.OwnerID); p != nil {
		p.Created(n)
	}
}

// Updated forwards a changed note to its owner's projection, if loaded.
func (r *Registry) Updated(n note.Note) {
	if p := r.lookup(n.OwnerID); p != nil {
		p.Updated(n)
	}
}

// Removed forwards a deletion to the owner's projection, if loaded.
func (r *Registry) Removed(ownerID, id string) {
	if p := r.lookup(ownerID); p != nil {
		p.Removed(id)
	}
}

func (r *Registry) lookup(ownerID string) *Projection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byOwner[ownerID]
}
