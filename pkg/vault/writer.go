package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// WriteDocument writes doc to doc.Path, creating parent directories.
func WriteDocument(doc *Document) error {
	fmData, err := yaml.Marshal(doc.Frontmatter)
	if err != nil {
		return fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	content := fmt.Sprintf("---\n%s---\n%s", string(fmData), doc.Content)

	if err := os.MkdirAll(filepath.Dir(doc.Path), 0755); err != nil {
		return err
	}

	// write then rename so readers never see a half-written note
	tmp := doc.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, doc.Path)
}

const maxSlugRunes = 48

// Slug turns a title into a lower-case file name fragment.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	n := 0
	for _, r := range strings.ToLower(title) {
		if n == maxSlugRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
			n++
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "note"
	}
	return s
}

// SanitizeFilename removes characters invalid in file and directory names.
func SanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range invalid {
		name = strings.ReplaceAll(name, char, "-")
	}
	name = strings.Trim(name, ". ")
	if name == "" {
		return "_"
	}
	return name
}
