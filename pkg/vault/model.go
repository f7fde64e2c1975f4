package vault

import (
	"time"

	"github.com/mklimuk/notepilot/pkg/note"
)

// Frontmatter is the YAML header of a mirrored note.
type Frontmatter struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Tags        []string `yaml:"tags,omitempty"`
	Category    string   `yaml:"category"`
	Subcategory string   `yaml:"subcategory,omitempty"`
	Pinned      bool     `yaml:"pinned,omitempty"`
	Created     string   `yaml:"created"`
	Updated     string   `yaml:"updated"`
}

// Document is a parsed Markdown file.
type Document struct {
	Path        string
	Frontmatter Frontmatter
	Content     string // the markdown body after the front matter
}

func frontmatterOf(n note.Note) Frontmatter {
	return Frontmatter{
		ID:          n.ID,
		Title:       n.Title,
		Tags:        n.Tags,
		Category:    n.Category.Main,
		Subcategory: n.Category.Sub,
		Pinned:      n.IsPinned,
		Created:     n.CreatedAt.UTC().Format(time.RFC3339),
		Updated:     n.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
