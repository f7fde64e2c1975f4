package vault

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/note"
)

var datePlaceholder = regexp.MustCompile(`\{\{date:(.*?)\}\}`)

// TemplateEngine renders the body of mirrored notes from a template file.
// Supported placeholders:
// {{title}}, {{content}}, {{id}}, {{category}}, {{tags}} (space separated #tags)
// {{date:FORMAT}} - creation date in Moment.js style (e.g. YYYY-MM-DD)
type TemplateEngine struct {
	template string
}

// LoadTemplate reads the template at path.
func LoadTemplate(path string) (*TemplateEngine, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return NewTemplateEngine(string(content)), nil
}

// NewTemplateEngine creates a TemplateEngine from template text.
func NewTemplateEngine(template string) *TemplateEngine {
	return &TemplateEngine{template: template}
}

// Render fills the template for n.
func (e *TemplateEngine) Render(n note.Note) string {
	tags := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		tags = append(tags, "#"+t)
	}

	content := strings.NewReplacer(
		"{{title}}", n.Title,
		"{{content}}", n.Content,
		"{{id}}", n.ID,
		"{{category}}", n.Category.Main,
		"{{tags}}", strings.Join(tags, " "),
	).Replace(e.template)

	return datePlaceholder.ReplaceAllStringFunc(content, func(match string) string {
		parts := datePlaceholder.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return formatMoment(n.CreatedAt, parts[1])
	})
}

// formatMoment formats t with a simple Moment.js format string.
func formatMoment(t time.Time, format string) string {
	if format == "YYYY-[W]WW" {
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	}
	return t.Format(strings.NewReplacer(
		"YYYY", "2006",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	).Replace(format))
}
