package note

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinContentRunes is the shortest trimmed text accepted as a note.
	// Shorter input is treated as noise.
	MinContentRunes = 3

	// MaxTitleRunes bounds derived and suggested titles. Titles set by the
	// user are kept as they are.
	MaxTitleRunes = 80

	// MaxTags bounds the tag list kept on a note.
	MaxTags = 8

	// UntitledTitle is used when no title can be derived.
	UntitledTitle = "Untitled"
)

// ValidateContent trims s and reports whether it passes the minimum content
// gate. The decision depends only on s.
func ValidateContent(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, utf8.RuneCountInString(trimmed) >= MinContentRunes
}

// DeriveTitle returns the first non-blank line of content, truncated to
// MaxTitleRunes, or UntitledTitle.
func DeriveTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return truncate(line, MaxTitleRunes)
		}
	}
	return UntitledTitle
}

// TitleOrDefault returns title trimmed, or a title derived from content when
// title is blank.
func TitleOrDefault(title, content string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DeriveTitle(content)
	}
	return title
}

// ShortTitle trims title and truncates it to MaxTitleRunes.
func ShortTitle(title string) string {
	return truncate(strings.TrimSpace(title), MaxTitleRunes)
}

// TrimTags trims tags and drops blank ones. Order, case and duplicates are
// kept. The result is never nil.
func TrimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeTags trims, lower-cases and de-duplicates suggested tags, keeping
// the first occurrence order and at most MaxTags. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.TrimPrefix(t, "#")
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max-3])) + "..."
}
