package projection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/note"
)

var errOffline = errors.New("store offline")

// fakeStore keeps notes in memory. While hold is set, mutations block until
// it is closed so tests can look at the optimistic state.
type fakeStore struct {
	note.Store

	mu    sync.Mutex
	notes map[string]note.Note
	fail  error
	hold  chan struct{}
	seq   int
	clock time.Time
	// afterList runs once List has taken its snapshot
	afterList func()
}

func newFakeStore(notes ...note.Note) *fakeStore {
	s := &fakeStore{notes: make(map[string]note.Note), clock: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	for _, n := range notes {
		s.notes[n.ID] = n
	}
	return s
}

func (s *fakeStore) wait() error {
	s.mu.Lock()
	hold, fail := s.hold, s.fail
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
	return fail
}

func (s *fakeStore) Insert(_ context.Context, ownerID string, d note.Draft) (note.Note, error) {
	if err := s.wait(); err != nil {
		return note.Note{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.clock = s.clock.Add(time.Minute)
	n := note.Note{
		ID:        "new-" + string(rune('a'+s.seq)),
		OwnerID:   ownerID,
		Content:   d.Content,
		Title:     note.TitleOrDefault(d.Title, d.Content),
		Tags:      d.Tags,
		Category:  d.Category,
		CreatedAt: s.clock,
		UpdatedAt: s.clock,
	}
	s.notes[n.ID] = n
	return n, nil
}

func (s *fakeStore) List(_ context.Context, ownerID string, _ note.Filter) ([]note.Note, error) {
	s.mu.Lock()
	if s.fail != nil {
		s.mu.Unlock()
		return nil, s.fail
	}
	var out []note.Note
	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	hook := s.afterList
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (s *fakeStore) TogglePin(_ context.Context, ownerID, id string) (note.Note, error) {
	if err := s.wait(); err != nil {
		return note.Note{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.owned(ownerID, id)
	if err != nil {
		return note.Note{}, err
	}
	n.IsPinned = !n.IsPinned
	s.notes[id] = n
	return n, nil
}

func (s *fakeStore) Update(_ context.Context, ownerID, id string, p note.Patch) (note.Note, error) {
	if err := s.wait(); err != nil {
		return note.Note{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.owned(ownerID, id)
	if err != nil {
		return note.Note{}, err
	}
	n = p.Apply(n)
	s.notes[id] = n
	return n, nil
}

func (s *fakeStore) Delete(_ context.Context, ownerID, id string) error {
	if err := s.wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(ownerID, id); err != nil {
		return err
	}
	delete(s.notes, id)
	return nil
}

func (s *fakeStore) owned(ownerID, id string) (note.Note, error) {
	n, ok := s.notes[id]
	if !ok {
		return note.Note{}, apperr.NewNotFound(id)
	}
	if n.OwnerID != ownerID {
		return note.Note{}, apperr.NewAuthorizationDenied(id)
	}
	return n, nil
}

func seedNotes() []note.Note {
	at := func(h int) time.Time { return time.Date(2026, 4, 30, h, 0, 0, 0, time.UTC) }
	return []note.Note{
		{ID: "n1", OwnerID: "alice", Title: "Groceries", Content: "eggs", Category: note.Category{Main: note.CategoryNote}, CreatedAt: at(1), UpdatedAt: at(1)},
		{ID: "n2", OwnerID: "alice", Title: "Dentist", Content: "friday", Category: note.Category{Main: note.CategoryNote}, CreatedAt: at(2), UpdatedAt: at(2), IsPinned: true},
		{ID: "n3", OwnerID: "alice", Title: "Ideas", Content: "blog", Category: note.Category{Main: note.CategoryNote}, CreatedAt: at(3), UpdatedAt: at(3)},
		{ID: "b1", OwnerID: "bob", Title: "Bob's", Content: "private", Category: note.Category{Main: note.CategoryNote}, CreatedAt: at(4), UpdatedAt: at(4)},
	}
}

func ids(notes []note.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func setup(t *testing.T) (*Projection, *fakeStore) {
	t.Helper()
	store := newFakeStore(seedNotes()...)
	p := New("alice", store, note.Filter{})
	require.NoError(t, p.Refresh(context.Background()))
	return p, store
}

func TestRefresh(t *testing.T) {
	p, _ := setup(t)
	assert.Equal(t, []string{"n2", "n3", "n1"}, ids(p.Notes()))
}

func TestRefreshFailureKeepsState(t *testing.T) {
	p, store := setup(t)
	store.fail = errOffline
	require.ErrorIs(t, p.Refresh(context.Background()), errOffline)
	assert.Len(t, p.Notes(), 3)
}

func TestCreate(t *testing.T) {
	p, store := setup(t)

	n, err := p.Create(context.Background(), note.Draft{Content: "Call mom", Category: note.Category{Main: note.CategoryNote}})
	require.NoError(t, err)
	// newest unpinned note comes right after the pinned ones
	assert.Equal(t, []string{"n2", n.ID, "n3", "n1"}, ids(p.Notes()))

	store.fail = errOffline
	_, err = p.Create(context.Background(), note.Draft{Content: "Lost"})
	require.ErrorIs(t, err, errOffline)
	assert.Len(t, p.Notes(), 4)
}

func TestCreatedIgnoresOtherOwners(t *testing.T) {
	p, _ := setup(t)
	p.Created(note.Note{ID: "x", OwnerID: "bob"})
	assert.Len(t, p.Notes(), 3)

	p.Created(note.Note{ID: "c1", OwnerID: "alice", UpdatedAt: time.Now()})
	assert.Equal(t, "c1", p.Notes()[1].ID)
}

func TestCreatedRespectsFilter(t *testing.T) {
	store := newFakeStore()
	p := New("alice", store, note.Filter{Category: note.CategoryNote})

	p.Created(note.Note{ID: "v1", OwnerID: "alice", Content: "voice memo", Category: note.Category{Main: note.CategoryVoiceNote}})
	assert.Empty(t, p.Notes())

	p.Created(note.Note{ID: "t1", OwnerID: "alice", Content: "typed", Category: note.Category{Main: note.CategoryNote}})
	assert.Equal(t, []string{"t1"}, ids(p.Notes()))
}

func TestRefreshKeepsChangesConfirmedDuringList(t *testing.T) {
	p, store := setup(t)
	store.afterList = func() {
		store.afterList = nil
		p.Created(note.Note{ID: "c1", OwnerID: "alice", Content: "captured while listing", UpdatedAt: time.Now()})
		require.NoError(t, p.Delete(context.Background(), "n3"))
	}

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, []string{"n2", "c1", "n1"}, ids(p.Notes()))

	// the next refresh sees the store again
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, []string{"n2", "n1"}, ids(p.Notes()))
}

func TestTogglePinOptimistic(t *testing.T) {
	p, store := setup(t)
	store.hold = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := p.TogglePin(context.Background(), "n1")
		done <- err
	}()

	require.Eventually(t, func() bool { return p.Pending() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"n2", "n1", "n3"}, ids(p.Notes()))

	close(store.hold)
	require.NoError(t, <-done)
	assert.Equal(t, 0, p.Pending())
	assert.Equal(t, []string{"n2", "n1", "n3"}, ids(p.Notes()))
}

func TestTogglePinRollback(t *testing.T) {
	p, store := setup(t)
	before := p.Notes()
	store.hold = make(chan struct{})
	store.fail = errOffline

	done := make(chan error, 1)
	go func() {
		_, err := p.TogglePin(context.Background(), "n2")
		done <- err
	}()

	require.Eventually(t, func() bool { return p.Pending() == 1 }, time.Second, time.Millisecond)
	for _, n := range p.Notes() {
		assert.False(t, n.IsPinned, n.ID)
	}

	close(store.hold)
	require.ErrorIs(t, <-done, errOffline)
	assert.Equal(t, before, p.Notes())
}

func TestEdit(t *testing.T) {
	p, store := setup(t)
	title := "Weekly groceries"

	n, err := p.Edit(context.Background(), "n1", note.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, n.Title)
	assert.Equal(t, title, p.Notes()[2].Title)

	store.fail = errOffline
	other := "Never saved"
	_, err = p.Edit(context.Background(), "n1", note.Patch{Title: &other})
	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, title, p.Notes()[2].Title)
}

func TestDelete(t *testing.T) {
	p, store := setup(t)

	store.fail = errOffline
	require.ErrorIs(t, p.Delete(context.Background(), "n3"), errOffline)
	assert.Equal(t, []string{"n2", "n3", "n1"}, ids(p.Notes()))

	store.fail = nil
	require.NoError(t, p.Delete(context.Background(), "n3"))
	assert.Equal(t, []string{"n2", "n1"}, ids(p.Notes()))

	err := p.Delete(context.Background(), "n3")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestForeignNoteIsInvisible(t *testing.T) {
	p, _ := setup(t)
	_, err := p.TogglePin(context.Background(), "b1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.NotContains(t, ids(p.Notes()), "b1")
}

func TestSubscribe(t *testing.T) {
	p, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := p.Subscribe(ctx)
	_, err := p.TogglePin(context.Background(), "n3")
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, "n3", snap[0].ID)
		assert.True(t, snap[0].IsPinned)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, time.Millisecond)
}

func TestUpdatedAndRemoved(t *testing.T) {
	store := newFakeStore(seedNotes()...)
	p := New("alice", store, note.Filter{Category: note.CategoryNote})
	require.NoError(t, p.Refresh(context.Background()))

	n1 := seedNotes()[0]
	n1.Title = "Weekly groceries"
	p.Updated(n1)
	assert.Equal(t, "Weekly groceries", p.Notes()[2].Title)

	// moved out of the filter
	n1.Category = note.Category{Main: note.CategoryVoiceNote}
	p.Updated(n1)
	assert.Equal(t, []string{"n2", "n3"}, ids(p.Notes()))

	p.Updated(note.Note{ID: "b1", OwnerID: "bob", Category: note.Category{Main: note.CategoryNote}})
	p.Removed("n3")
	assert.Equal(t, []string{"n2"}, ids(p.Notes()))
}

func TestRegistry(t *testing.T) {
	store := newFakeStore(seedNotes()...)
	r := NewRegistry(store)

	// nothing is loaded yet, so changes are dropped
	r.Created(note.Note{ID: "early", OwnerID: "alice"})

	p, err := r.For(context.Background(), "alice")
	require.NoError(t, err)
	again, err := r.For(context.Background(), "alice")
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, []string{"n2", "n3", "n1"}, ids(p.Notes()))

	updates := p.Subscribe(t.Context())
	r.Created(note.Note{ID: "c1", OwnerID: "alice", UpdatedAt: time.Now()})
	select {
	case snap := <-updates:
		assert.Equal(t, []string{"n2", "c1", "n3", "n1"}, ids(snap))
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}

	r.Removed("alice", "c1")
	r.Removed("bob", "b1")
	assert.Equal(t, []string{"n2", "n3", "n1"}, ids(p.Notes()))

	store.fail = errOffline
	_, err = r.For(context.Background(), "bob")
	require.ErrorIs(t, err, errOffline)
	store.fail = nil
	bob, err := r.For(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids(bob.Notes()))
}
