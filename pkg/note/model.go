// Package note holds the note entity, the content validation gate and the
// ordering rules shared by the store and the list projection.
package note

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Well-known category discriminators.
const (
	CategoryNote      = "note"
	CategoryVoiceNote = "voice-note"
	CategoryTask      = "task"
)

// DefaultVoiceTag is applied to voice notes when no tags were suggested.
const DefaultVoiceTag = "voice"

// Category is a tagged value with a required Main discriminator.
type Category struct {
	Main string `json:"main"`
	Sub  string `json:"sub,omitempty"`
}

// Note is the persisted entity.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Category  Category  `json:"category"`
	IsPinned  bool      `json:"is_pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that does not share the tag slice.
func (n Note) Clone() Note {
	c := n
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	return c
}

// Draft carries the caller-supplied fields of a new note. Callers never
// supply an id.
type Draft struct {
	Content  string
	Title    string
	Tags     []string
	Category Category
}

// Patch replaces the mutable fields that are non-nil.
type Patch struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Category *Category `json:"category,omitempty"`
	IsPinned *bool     `json:"is_pinned,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil && p.Category == nil && p.IsPinned == nil
}

// Apply returns n with the patch applied. Defaults are re-applied so a patch
// cannot blank the title or category.
func (p Patch) Apply(n Note) Note {
	out := n.Clone()
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Tags != nil {
		out.Tags = TrimTags(*p.Tags)
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.IsPinned != nil {
		out.IsPinned = *p.IsPinned
	}
	out.Title = TitleOrDefault(out.Title, out.Content)
	if out.Category.Main == "" {
		out.Category.Main = CategoryNote
	}
	return out
}

// Filter narrows a List call. Empty fields do not filter.
type Filter struct {
	Category string
	Search   string
	Tag      string
	Sort     Sort
}

// Matches reports whether n passes the filter the way the store applies it:
// exact category, case-insensitive tag and case-insensitive substring search
// on title and content.
func (f Filter) Matches(n Note) bool {
	if f.Category != "" && n.Category.Main != f.Category {
		return false
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" &&
		!slices.ContainsFunc(n.Tags, func(t string) bool { return strings.EqualFold(t, tag) }) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" &&
		!strings.Contains(strings.ToLower(n.Title), q) && !strings.Contains(strings.ToLower(n.Content), q) {
		return false
	}
	return true
}

// Store is the tenant-scoped note store. Every operation takes the resolved
// owner id and must refuse to touch notes owned by someone else.
type Store interface {
	Insert(ctx context.Context, ownerID string, d Draft) (Note, error)
	Get(ctx context.Context, ownerID, id string) (Note, error)
	Update(ctx context.Context, ownerID, id string, p Patch) (Note, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string, f Filter) ([]Note, error)
	TogglePin(ctx context.Context, ownerID, id string) (Note, error)
}
