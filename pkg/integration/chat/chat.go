// Package chat holds what the chat bots share: owner ids, audio downloads
// and reply texts for capture outcomes.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/capture"
)

const downloadTimeout = 30 * time.Second

// ErrTooLarge is returned by Download for files above the size limit.
var ErrTooLarge = errors.New("file is too large")

// OwnerID scopes a chat user id to its platform.
func OwnerID(platform string, userID any) string {
	return fmt.Sprintf("%s:%v", platform, userID)
}

// Download fetches a file of at most maxBytes.
func Download(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Reply describes a capture outcome to the user.
func Reply(out capture.Outcome) string {
	if out.Completed() {
		var b strings.Builder
		fmt.Fprintf(&b, "Saved: %s", out.Note.Title)
		if len(out.Note.Tags) > 0 {
			tags := make([]string, 0, len(out.Note.Tags))
			for _, t := range out.Note.Tags {
				tags = append(tags, "#"+t)
			}
			fmt.Fprintf(&b, "\n%s", strings.Join(tags, " "))
		}
		if s := out.Suggestion; s != nil && s.Event != nil && s.Event.Actionable() {
			fmt.Fprintf(&b, "\nLooks like an event: %s", s.Event.Text)
		}
		return b.String()
	}
	if out.Cancelled() {
		return "Capture cancelled."
	}

	var ae *apperr.Error
	if !errors.As(out.Err, &ae) {
		return "Something went wrong, please try again."
	}
	switch ae.Code {
	case apperr.CodePersistenceFailed:
		return fmt.Sprintf("The note could not be saved. Here is the text so you can retry:\n%s", strings.TrimSpace(out.Transcript))
	case apperr.CodeInternal:
		return "Something went wrong, please try again."
	default:
		return capitalize(ae.Message) + "."
	}
}

// Status reports whether a capture is running for the orchestrator's owner.
func Status(o *capture.Orchestrator) string {
	if s := o.Active(); s != nil {
		return fmt.Sprintf("Notepilot is online. A capture is %s.", s.State())
	}
	return "Notepilot is online. Send a voice message or a note to capture it."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
