package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/note"
)

// EventConfidenceThreshold is the minimum confidence for an event hint to be acted upon.
const EventConfidenceThreshold = 0.7

// EventHint describes a calendar event detected in a note.
type EventHint struct {
	HasEvent   bool    `json:"has_event"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Actionable reports whether the hint passes the confidence gate.
func (h EventHint) Actionable() bool {
	return h.HasEvent && strings.TrimSpace(h.Text) != "" && h.Confidence >= EventConfidenceThreshold
}

// Suggestion is the structured categorization of a transcript. Every field is optional.
type Suggestion struct {
	Title    string
	Tags     []string
	Category string
	Event    *EventHint
}

// CategorizeErrorKind classifies a categorization failure.
type CategorizeErrorKind string

const (
	CategorizeUnavailable     CategorizeErrorKind = "unavailable"
	CategorizeInvalidResponse CategorizeErrorKind = "invalid_response"
)

// CategorizeError is the typed failure returned by Categorize.
type CategorizeError struct {
	Kind CategorizeErrorKind
	Err  error
}

func (e *CategorizeError) Error() string {
	return fmt.Sprintf("categorization %s: %v", e.Kind, e.Err)
}

func (e *CategorizeError) Unwrap() error {
	return e.Err
}

// Categorizer turns transcripts into suggestions using a Generator.
type Categorizer struct {
	gen Generator
	now func() time.Time
}

// NewCategorizer creates a new Categorizer
func NewCategorizer(gen Generator) *Categorizer {
	return &Categorizer{gen: gen, now: time.Now}
}

type categorizeResponse struct {
	Title    string     `json:"title"`
	Tags     []string   `json:"tags"`
	Category string     `json:"category"`
	Event    *EventHint `json:"event"`
}

// Categorize asks the model for a title, tags and an optional event hint.
func (c *Categorizer) Categorize(ctx context.Context, transcript string) (Suggestion, error) {
	if strings.TrimSpace(transcript) == "" {
		return Suggestion{}, &CategorizeError{Kind: CategorizeInvalidResponse, Err: errors.New("transcript is empty")}
	}

	raw, err := c.gen.Generate(ctx, CategorizePrompt(transcript, c.now()))
	if err != nil {
		return Suggestion{}, &CategorizeError{Kind: CategorizeUnavailable, Err: err}
	}

	var resp categorizeResponse
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &resp); err != nil {
		return Suggestion{}, &CategorizeError{Kind: CategorizeInvalidResponse, Err: fmt.Errorf("failed to parse suggestion: %w", err)}
	}

	s := Suggestion{Category: strings.ToLower(strings.TrimSpace(resp.Category))}
	if title := strings.TrimSpace(resp.Title); title != "" {
		s.Title = note.ShortTitle(title)
	}
	if len(resp.Tags) > 0 {
		s.Tags = note.NormalizeTags(resp.Tags)
	}
	if resp.Event != nil {
		ev := *resp.Event
		ev.Text = strings.TrimSpace(ev.Text)
		ev.Confidence = clamp01(ev.Confidence)
		s.Event = &ev
	}
	return s, nil
}

// cleanJSON strips Markdown code fences some models wrap JSON in.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
