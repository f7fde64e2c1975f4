package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	f.prompt = p
	return f.reply, f.err
}

func (f *fakeGenerator) Close() error { return nil }

func TestCategorize(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `{
		"title": "  Buy milk ",
		"tags": ["Errand", "errand", "#shopping"],
		"category": "Task",
		"event": {"has_event": true, "text": " Groceries tomorrow 5pm ", "confidence": 1.4}
	}` + "\n```"}
	c := NewCategorizer(gen)
	c.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	s, err := c.Categorize(context.Background(), "Buy milk tomorrow")
	require.NoError(t, err)
	require.Equal(t, "Buy milk", s.Title)
	require.Equal(t, []string{"errand", "shopping"}, s.Tags)
	require.Equal(t, "task", s.Category)
	require.NotNil(t, s.Event)
	require.Equal(t, "Groceries tomorrow 5pm", s.Event.Text)
	require.Equal(t, 1.0, s.Event.Confidence)
	require.True(t, s.Event.Actionable())

	require.True(t, gen.prompt.JSON)
	require.Contains(t, gen.prompt.User, `"Buy milk tomorrow"`)
	require.Contains(t, gen.prompt.User, "Friday, 1 May 2026")
}

func TestCategorizeEmptySuggestion(t *testing.T) {
	c := NewCategorizer(&fakeGenerator{reply: `{}`})

	s, err := c.Categorize(context.Background(), "something")
	require.NoError(t, err)
	require.Empty(t, s.Title)
	require.Nil(t, s.Tags)
	require.Nil(t, s.Event)
}

func TestCategorizeLongTitleIsTruncated(t *testing.T) {
	c := NewCategorizer(&fakeGenerator{reply: `{"title":"` + strings.Repeat("a", 200) + `"}`})

	s, err := c.Categorize(context.Background(), "something")
	require.NoError(t, err)
	require.Len(t, []rune(s.Title), 80)
}

func TestCategorizeErrors(t *testing.T) {
	var ce *CategorizeError

	_, err := NewCategorizer(&fakeGenerator{err: errors.New("boom")}).Categorize(context.Background(), "text")
	require.ErrorAs(t, err, &ce)
	require.Equal(t, CategorizeUnavailable, ce.Kind)

	_, err = NewCategorizer(&fakeGenerator{reply: "I think this is a task"}).Categorize(context.Background(), "text")
	require.ErrorAs(t, err, &ce)
	require.Equal(t, CategorizeInvalidResponse, ce.Kind)

	_, err = NewCategorizer(&fakeGenerator{}).Categorize(context.Background(), "  ")
	require.ErrorAs(t, err, &ce)
	require.Equal(t, CategorizeInvalidResponse, ce.Kind)
}

func TestEventHintActionable(t *testing.T) {
	require.True(t, EventHint{HasEvent: true, Text: "x", Confidence: 0.7}.Actionable())
	require.False(t, EventHint{HasEvent: true, Text: "x", Confidence: 0.69}.Actionable())
	require.False(t, EventHint{HasEvent: false, Text: "x", Confidence: 0.9}.Actionable())
	require.False(t, EventHint{HasEvent: true, Text: " ", Confidence: 0.9}.Actionable())
}
