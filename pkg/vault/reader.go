package vault

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadDocument reads a markdown file and parses its front matter and body.
func ReadDocument(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var frontmatterLines []string
	var contentLines []string
	inFrontmatter := false
	lineCount := 0

	for scanner.Scan() {
		line := scanner.Text()
		lineCount++

		if lineCount == 1 && line == "---" {
			inFrontmatter = true
			continue
		}

		if inFrontmatter {
			if line == "---" {
				inFrontmatter = false
				continue
			}
			frontmatterLines = append(frontmatterLines, line)
		} else {
			contentLines = append(contentLines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	doc := &Document{Path: path, Content: strings.Join(contentLines, "\n")}
	if fm := strings.Join(frontmatterLines, "\n"); fm != "" {
		if err := yaml.Unmarshal([]byte(fm), &doc.Frontmatter); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}
	return doc, nil
}
