// Package vault mirrors notes into a directory of Markdown files with YAML
// front matter, one directory per owner.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
)

// Syncer publishes the mirror directory, for example as a git commit.
type Syncer interface {
	Sync(ctx context.Context, message string) error
}

// Mirror is a note.Store that writes every change of the wrapped store to
// <root>/<owner>/<slug>-<id>.md. The wrapped store stays authoritative:
// mirror failures are logged and never returned.
type Mirror struct {
	note.Store

	root        string
	tmpl        *TemplateEngine
	syncer      Syncer
	syncTimeout time.Duration

	// mu serializes file writes, syncMu serializes syncs. Writes never wait
	// on a sync.
	mu     sync.Mutex
	syncMu sync.Mutex
	bg     sync.WaitGroup
}

// DefaultSyncTimeout bounds one background sync.
const DefaultSyncTimeout = time.Minute

type MirrorOption func(*Mirror)

// WithTemplate renders note bodies through tmpl instead of writing the bare content.
func WithTemplate(tmpl *TemplateEngine) MirrorOption {
	return func(m *Mirror) {
		m.tmpl = tmpl
	}
}

// WithSyncer publishes the mirror after every change.
func WithSyncer(s Syncer) MirrorOption {
	return func(m *Mirror) {
		m.syncer = s
	}
}

// WithSyncTimeout bounds each background sync, including the push.
func WithSyncTimeout(d time.Duration) MirrorOption {
	return func(m *Mirror) {
		if d > 0 {
			m.syncTimeout = d
		}
	}
}

// NewMirror wraps store.
func NewMirror(store note.Store, root string, opts ...MirrorOption) *Mirror {
	m := &Mirror{Store: store, root: root, syncTimeout: DefaultSyncTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) Insert(ctx context.Context, ownerID string, d note.Draft) (note.Note, error) {
	n, err := m.Store.Insert(ctx, ownerID, d)
	if err != nil {
		return n, err
	}
	m.written(ctx, n, "Add note: "+n.Title)
	return n, nil
}

func (m *Mirror) Update(ctx context.Context, ownerID, id string, p note.Patch) (note.Note, error) {
	n, err := m.Store.Update(ctx, ownerID, id, p)
	if err != nil {
		return n, err
	}
	m.written(ctx, n, "Update note: "+n.Title)
	return n, nil
}

func (m *Mirror) TogglePin(ctx context.Context, ownerID, id string) (note.Note, error) {
	n, err := m.Store.TogglePin(ctx, ownerID, id)
	if err != nil {
		return n, err
	}
	m.written(ctx, n, "Pin note: "+n.Title)
	return n, nil
}

func (m *Mirror) Delete(ctx context.Context, ownerID, id string) error {
	if err := m.Store.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	m.mu.Lock()
	err := m.removeLocked(ownerID, id, "")
	m.mu.Unlock()
	if err != nil {
		slogx.Warn(ctx, "failed to remove mirrored note", slogx.NoteID(id), slogx.Err(err))
		return nil
	}
	m.sync(ctx, "Delete note "+id)
	return nil
}

// Path returns the file a note is mirrored to.
func (m *Mirror) Path(n note.Note) string {
	return filepath.Join(m.root, SanitizeFilename(n.OwnerID), Slug(n.Title)+"-"+n.ID+".md")
}

// Wait blocks until background syncs are done.
func (m *Mirror) Wait() {
	m.bg.Wait()
}

func (m *Mirror) written(ctx context.Context, n note.Note, message string) {
	if err := m.write(n); err != nil {
		slogx.Warn(ctx, "failed to mirror note", slogx.NoteID(n.ID), slogx.Err(err))
		return
	}
	m.sync(ctx, message)
}

func (m *Mirror) write(n note.Note) error {
	body := n.Content + "\n"
	if m.tmpl != nil {
		body = m.tmpl.Render(n)
	}
	doc := &Document{Path: m.Path(n), Frontmatter: frontmatterOf(n), Content: body}

	m.mu.Lock()
	defer m.mu.Unlock()
	// a renamed note leaves a file under its old slug
	if err := m.removeLocked(n.OwnerID, n.ID, doc.Path); err != nil {
		return err
	}
	return WriteDocument(doc)
}

func (m *Mirror) removeLocked(ownerID, id, keep string) error {
	pattern := filepath.Join(m.root, SanitizeFilename(ownerID), "*-"+id+".md")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to find mirrored files: %w", err)
	}
	var errs []error
	for _, path := range matches {
		if path == keep {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mirror) sync(ctx context.Context, message string) {
	if m.syncer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		m.syncMu.Lock()
		defer m.syncMu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, m.syncTimeout)
		defer cancel()
		if err := m.syncer.Sync(ctx, message); err != nil {
			slogx.Warn(ctx, "vault sync failed", slog.String("message", message), slogx.Err(err))
		}
	}()
}
