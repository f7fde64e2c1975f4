package note

import (
	"fmt"
	"slices"
	"strings"
)

// SortKey names the secondary ordering applied inside the pinned and
// unpinned partitions.
type SortKey string

const (
	SortByTitle     SortKey = "title"
	SortByCreatedAt SortKey = "created_at"
	SortByUpdatedAt SortKey = "updated_at"
)

// Sort orders a note list. The zero value sorts by updated_at descending.
type Sort struct {
	Key SortKey
	Asc bool
}

// DefaultSort is used when no sort is requested.
var DefaultSort = Sort{Key: SortByUpdatedAt}

// ParseSort parses a key and an order ("asc" or "desc", default desc).
func ParseSort(key, order string) (Sort, error) {
	s := DefaultSort
	switch SortKey(strings.ToLower(strings.TrimSpace(key))) {
	case "":
	case SortByTitle:
		s.Key = SortByTitle
	case SortByCreatedAt:
		s.Key = SortByCreatedAt
	case SortByUpdatedAt:
		s.Key = SortByUpdatedAt
	default:
		return Sort{}, fmt.Errorf("unsupported sort key %q", key)
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "desc":
	case "asc":
		s.Asc = true
	default:
		return Sort{}, fmt.Errorf("unsupported sort order %q", order)
	}
	return s, nil
}

func (s Sort) key() SortKey {
	if s.Key == "" {
		return SortByUpdatedAt
	}
	return s.Key
}

// Compare orders a before b: pinned notes first, then by the sort key.
// Equal keys compare as 0 so a stable sort keeps the input order.
func (s Sort) Compare(a, b Note) int {
	if a.IsPinned != b.IsPinned {
		if a.IsPinned {
			return -1
		}
		return 1
	}
	var c int
	switch s.key() {
	case SortByTitle:
		c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortByCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	default:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	}
	if !s.Asc {
		c = -c
	}
	return c
}

// SortNotes sorts notes in place, pinned first.
func SortNotes(notes []Note, s Sort) {
	slices.SortStableFunc(notes, s.Compare)
}
