// Package projection keeps the note list a client shows. Local mutations are
// applied at once on top of the last confirmed state and dropped again when
// the store rejects them.
package projection

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/imkira/go-observer"

	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
)

type mutation struct {
	noteID string
	// note is the optimistic value, nil when the note is being deleted
	note *note.Note
}

// Projection is the note list of one owner in one client.
type Projection struct {
	ownerID string
	store   note.Store
	filter  note.Filter

	mu        sync.Mutex
	confirmed map[string]note.Note
	pending   map[string]mutation
	// order of pending correlation ids, oldest first
	order []string
	// seq counts confirmed changes, touched holds the seq of the last
	// confirmed change per note so Refresh keeps changes newer than its list
	seq     uint64
	touched map[string]uint64

	prop observer.Property
}

// New creates an empty projection. Call Refresh to load the owner's notes.
func New(ownerID string, store note.Store, filter note.Filter) *Projection {
	return &Projection{
		ownerID:   ownerID,
		store:     store,
		filter:    filter,
		confirmed: make(map[string]note.Note),
		pending:   make(map[string]mutation),
		touched:   make(map[string]uint64),
		prop:      observer.NewProperty([]note.Note{}),
	}
}

// Refresh replaces the confirmed state with the store's list. Pending
// mutations stay on top, and changes confirmed while the list was loading
// win over the list.
func (p *Projection) Refresh(ctx context.Context) error {
	p.mu.Lock()
	start := p.seq
	p.mu.Unlock()

	notes, err := p.store.List(ctx, p.ownerID, p.filter)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fresh := make(map[string]note.Note, len(notes))
	for _, n := range notes {
		fresh[n.ID] = n
	}
	for id, seq := range p.touched {
		if seq <= start {
			delete(p.touched, id)
			continue
		}
		if n, ok := p.confirmed[id]; ok {
			fresh[id] = n
		} else {
			delete(fresh, id)
		}
	}
	p.confirmed = fresh
	p.publishLocked()
	return nil
}

// Created adds a note that was inserted elsewhere, for example by a capture.
// Notes of other owners or outside the filter are ignored.
func (p *Projection) Created(n note.Note) {
	if n.OwnerID != p.ownerID || !p.filter.Matches(n) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmLocked(n.ID, &n)
	p.publishLocked()
}

// Updated applies a change confirmed elsewhere. A note that no longer
// matches the filter leaves the list.
func (p *Projection) Updated(n note.Note) {
	if n.OwnerID != p.ownerID {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filter.Matches(n) {
		p.confirmLocked(n.ID, &n)
	} else {
		p.confirmLocked(n.ID, nil)
	}
	p.publishLocked()
}

// Removed drops a note deleted elsewhere.
func (p *Projection) Removed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmLocked(id, nil)
	p.publishLocked()
}

// Create inserts a note and shows it without waiting for a refresh. A failed
// insert leaves the list unchanged.
func (p *Projection) Create(ctx context.Context, d note.Draft) (note.Note, error) {
	n, err := p.store.Insert(ctx, p.ownerID, d)
	if err != nil {
		return note.Note{}, err
	}
	p.Created(n)
	return n, nil
}

// TogglePin flips the pin of a note optimistically.
func (p *Projection) TogglePin(ctx context.Context, id string) (note.Note, error) {
	return p.mutate(ctx, id, func(n note.Note) *note.Note {
		n.IsPinned = !n.IsPinned
		return &n
	}, func(ctx context.Context) (*note.Note, error) {
		n, err := p.store.TogglePin(ctx, p.ownerID, id)
		return &n, err
	})
}

// Edit applies patch optimistically.
func (p *Projection) Edit(ctx context.Context, id string, patch note.Patch) (note.Note, error) {
	return p.mutate(ctx, id, func(n note.Note) *note.Note {
		n = patch.Apply(n)
		return &n
	}, func(ctx context.Context) (*note.Note, error) {
		n, err := p.store.Update(ctx, p.ownerID, id, patch)
		return &n, err
	})
}

// Delete hides the note at once and removes it from the store.
func (p *Projection) Delete(ctx context.Context, id string) error {
	_, err := p.mutate(ctx, id, func(note.Note) *note.Note {
		return nil
	}, func(ctx context.Context) (*note.Note, error) {
		return nil, p.store.Delete(ctx, p.ownerID, id)
	})
	return err
}

// Notes returns the visible list, pinned first.
func (p *Projection) Notes() []note.Note {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// Pending returns the number of mutations awaiting the store.
func (p *Projection) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Subscribe streams a snapshot of the visible list after every change until
// ctx is done.
func (p *Projection) Subscribe(ctx context.Context) <-chan []note.Note {
	stream := p.prop.Observe()

	result := make(chan []note.Note)
	go func() {
		defer close(result)
		for {
			select {
			case <-ctx.Done():
				return

			case <-stream.Changes():
				notes := stream.Next().([]note.Note)

				select {
				case <-ctx.Done():
					return
				case result <- notes:
				}
			}
		}
	}()
	return result
}

func (p *Projection) mutate(
	ctx context.Context,
	id string,
	local func(note.Note) *note.Note,
	remote func(context.Context) (*note.Note, error),
) (note.Note, error) {
	corrID := uuid.NewString()

	p.mu.Lock()
	current, ok := p.visibleLocked(id)
	if !ok {
		p.mu.Unlock()
		return note.Note{}, apperr.NewNotFound(id)
	}
	p.pending[corrID] = mutation{noteID: id, note: local(current.Clone())}
	p.order = append(p.order, corrID)
	p.publishLocked()
	p.mu.Unlock()

	confirmed, err := remote(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked(corrID)
	if err != nil {
		slogx.Warn(ctx, "note mutation rolled back",
			slogx.NoteID(id), slog.String("correlation_id", corrID), slogx.Err(err))
		p.publishLocked()
		return note.Note{}, err
	}
	p.confirmLocked(id, confirmed)
	p.publishLocked()
	if confirmed == nil {
		return note.Note{}, nil
	}
	return confirmed.Clone(), nil
}

// confirmLocked stores the value the store confirmed, nil for a deletion.
func (p *Projection) confirmLocked(id string, n *note.Note) {
	p.seq++
	p.touched[id] = p.seq
	if n == nil {
		delete(p.confirmed, id)
		return
	}
	p.confirmed[id] = *n
}

func (p *Projection) dropLocked(corrID string) {
	delete(p.pending, corrID)
	for i, c := range p.order {
		if c == corrID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Projection) visibleLocked(id string) (note.Note, bool) {
	n, ok := p.confirmed[id]
	for _, c := range p.order {
		m := p.pending[c]
		if m.noteID != id {
			continue
		}
		if m.note == nil {
			return note.Note{}, false
		}
		n, ok = *m.note, true
	}
	return n, ok
}

func (p *Projection) viewLocked() []note.Note {
	merged := make(map[string]note.Note, len(p.confirmed))
	for id, n := range p.confirmed {
		merged[id] = n
	}
	for _, c := range p.order {
		m := p.pending[c]
		if m.note == nil {
			delete(merged, m.noteID)
			continue
		}
		merged[m.noteID] = *m.note
	}

	out := make([]note.Note, 0, len(merged))
	for _, n := range merged {
		out = append(out, n.Clone())
	}
	// ties keep id order so snapshots are deterministic
	slices.SortFunc(out, func(a, b note.Note) int { return strings.Compare(a.ID, b.ID) })
	note.SortNotes(out, p.filter.Sort)
	return out
}

func (p *Projection) publishLocked() {
	p.prop.Update(p.viewLocked())
}
