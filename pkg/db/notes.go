package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
)

const noteColumns = `id, owner_id, title, content, tags_json, category_main, category_sub, is_pinned, created_at, updated_at`

// NoteStore is the SQLite implementation of note.Store. Every statement is
// scoped by owner_id and every single-note operation checks the stored owner
// before touching the row.
type NoteStore struct {
	db  *DB
	now func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy

	// serializes read-modify-write operations
	rmwMu sync.Mutex
}

var _ note.Store = (*NoteStore)(nil)

// NewNoteStore creates a new NoteStore
func NewNoteStore(db *DB) *NoteStore {
	return &NoteStore{
		db:      db,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *NoteStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *NoteStore) newID(t time.Time) (string, error) {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Insert persists a new note for ownerID and returns it with its generated id.
func (s *NoteStore) Insert(ctx context.Context, ownerID string, d note.Draft) (note.Note, error) {
	if ownerID == "" {
		return note.Note{}, apperr.NewAuthorizationDenied("")
	}
	content := strings.TrimSpace(d.Content)
	if content == "" {
		return note.Note{}, apperr.NewInvalidRequest("content must not be empty")
	}

	now := s.timestamp()
	id, err := s.newID(now)
	if err != nil {
		return note.Note{}, apperr.NewPersistenceFailed(content, fmt.Errorf("failed to generate id: %w", err))
	}

	n := note.Note{
		ID:        id,
		OwnerID:   ownerID,
		Content:   content,
		Title:     note.TitleOrDefault(d.Title, content),
		Tags:      note.TrimTags(d.Tags),
		Category:  d.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Category.Main == "" {
		n.Category.Main = note.CategoryNote
	}

	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return note.Note{}, apperr.NewPersistenceFailed(content, fmt.Errorf("failed to marshal tags: %w", err))
	}

	query := `INSERT INTO notes (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		n.ID, n.OwnerID, n.Title, n.Content, string(tagsJSON),
		n.Category.Main, n.Category.Sub, n.IsPinned,
		toMillis(n.CreatedAt), toMillis(n.UpdatedAt),
	); err != nil {
		return note.Note{}, apperr.NewPersistenceFailed(content, fmt.Errorf("failed to insert note: %w", err))
	}

	slogx.Debug(ctx, "note inserted", slogx.OwnerID(ownerID), slogx.NoteID(n.ID))
	return n, nil
}

// Get returns one note owned by ownerID.
func (s *NoteStore) Get(ctx context.Context, ownerID, id string) (note.Note, error) {
	return s.loadOwned(ctx, s.db, ownerID, id)
}

// Update applies p to the note and bumps updated_at.
func (s *NoteStore) Update(ctx context.Context, ownerID, id string, p note.Patch) (note.Note, error) {
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return note.Note{}, apperr.NewInvalidRequest("content must not be empty")
	}
	if p.Content != nil {
		trimmed := strings.TrimSpace(*p.Content)
		p.Content = &trimmed
	}

	s.rmwMu.Lock()
	defer s.rmwMu.Unlock()

	var out note.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if p.Empty() {
			out = current
			return nil
		}
		updated := p.Apply(current)
		updated.UpdatedAt = s.bump(current)
		if err := s.write(ctx, tx, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return note.Note{}, err
	}
	return out, nil
}

// TogglePin flips is_pinned in a single read-modify-write.
func (s *NoteStore) TogglePin(ctx context.Context, ownerID, id string) (note.Note, error) {
	s.rmwMu.Lock()
	defer s.rmwMu.Unlock()

	var out note.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		updated := current.Clone()
		updated.IsPinned = !current.IsPinned
		updated.UpdatedAt = s.bump(current)
		if err := s.write(ctx, tx, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return note.Note{}, err
	}

	slogx.Debug(ctx, "note pin toggled", slogx.OwnerID(ownerID), slogx.NoteID(id))
	return out, nil
}

// Delete removes a note owned by ownerID.
func (s *NoteStore) Delete(ctx context.Context, ownerID, id string) error {
	s.rmwMu.Lock()
	defer s.rmwMu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.loadOwned(ctx, tx, ownerID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
			return apperr.NewPersistenceFailed("", fmt.Errorf("failed to delete note: %w", err))
		}
		return nil
	})
}

// List returns the owner's notes, pinned first, then ordered by f.Sort.
func (s *NoteStore) List(ctx context.Context, ownerID string, f note.Filter) ([]note.Note, error) {
	if ownerID == "" {
		return nil, apperr.NewAuthorizationDenied("")
	}

	var (
		where = []string{"owner_id = ?"}
		args  = []any{ownerID}
	)
	if f.Category != "" {
		where = append(where, "category_main = ?")
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(notes.tags_json) WHERE lower(json_each.value) = ?)")
		args = append(args, tag)
	}

	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ` + orderBy(f.Sort)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewPersistenceFailed("", fmt.Errorf("failed to list notes: %w", err))
	}
	defer rows.Close()

	notes := []note.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, apperr.NewPersistenceFailed("", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewPersistenceFailed("", fmt.Errorf("failed to iterate notes: %w", err))
	}
	return notes, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadOwned reads a note and refuses it when the stored owner differs.
func (s *NoteStore) loadOwned(ctx context.Context, q querier, ownerID, id string) (note.Note, error) {
	if ownerID == "" {
		return note.Note{}, apperr.NewAuthorizationDenied(id)
	}
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return note.Note{}, apperr.NewNotFound(id)
		}
		return note.Note{}, apperr.NewPersistenceFailed("", err)
	}
	if n.OwnerID != ownerID {
		slogx.Warn(ctx, "owner scope violation", slogx.OwnerID(ownerID), slogx.NoteID(id))
		return note.Note{}, apperr.NewAuthorizationDenied(id)
	}
	return n, nil
}

func (s *NoteStore) write(ctx context.Context, tx *sql.Tx, n note.Note) error {
	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return apperr.NewPersistenceFailed(n.Content, fmt.Errorf("failed to marshal tags: %w", err))
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE notes
		SET title = ?, content = ?, tags_json = ?, category_main = ?, category_sub = ?, is_pinned = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		n.Title, n.Content, string(tagsJSON), n.Category.Main, n.Category.Sub, n.IsPinned, toMillis(n.UpdatedAt),
		n.ID, n.OwnerID,
	)
	if err != nil {
		return apperr.NewPersistenceFailed(n.Content, fmt.Errorf("failed to update note: %w", err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return apperr.NewNotFound(n.ID)
	}
	return nil
}

// bump returns the new updated_at, never earlier than the current one.
func (s *NoteStore) bump(current note.Note) time.Time {
	now := s.timestamp()
	if now.Before(current.UpdatedAt) {
		return current.UpdatedAt
	}
	return now
}

func (s *NoteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.NewPersistenceFailed("", fmt.Errorf("failed to begin transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			slogx.Warn(ctx, "rollback failed", slogx.Err(rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.NewPersistenceFailed("", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (note.Note, error) {
	var (
		n                    note.Note
		tagsJSON             string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &tagsJSON,
		&n.Category.Main, &n.Category.Sub, &n.IsPinned, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return note.Note{}, err
		}
		return note.Note{}, fmt.Errorf("failed to scan note: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return note.Note{}, fmt.Errorf("failed to parse tags of %s: %w", n.ID, err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updatedAt)
	return n, nil
}

func orderBy(s note.Sort) string {
	dir := "DESC"
	if s.Asc {
		dir = "ASC"
	}
	col := "updated_at"
	switch s.Key {
	case note.SortByTitle:
		col = "title COLLATE NOCASE"
	case note.SortByCreatedAt:
		col = "created_at"
	}
	return fmt.Sprintf("is_pinned DESC, %s %s, id %s", col, dir, dir)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
