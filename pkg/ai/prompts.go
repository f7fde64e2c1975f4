package ai

import (
	"fmt"
	"time"
)

const categorizeSystemPrompt = `You organize short voice memos and typed notes.
Reply with a single JSON object and nothing else.`

// CategorizePrompt returns the prompt that extracts a title, tags and an
// optional calendar event from a transcript.
func CategorizePrompt(transcript string, now time.Time) Prompt {
	user := fmt.Sprintf(`
Today is %s.

Analyze the following note and extract structured information.

Note: %q

Determine:
1. Title: a concise title, at most 8 words, in the language of the note
2. Tags: up to 5 short lowercase keywords (single words, no '#')
3. Category: one of (task, idea, reference, journal, meeting)
4. Event: whether the note describes something that should be put on a calendar.
   If it does, write the event as one natural-language line that a calendar
   quick-add box understands (what, when, where), and your confidence in [0,1].

Output as JSON:
{
  "title": "...",
  "tags": ["..."],
  "category": "...",
  "event": {"has_event": false, "text": "", "confidence": 0.0}
}
`, now.Format("Monday, 2 January 2006 15:04 MST"), transcript)

	return Prompt{System: categorizeSystemPrompt, User: user, JSON: true}
}
