package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const calendarScope = "https://www.googleapis.com/auth/calendar.events"

func TestNewHTTPClient_MissingPath(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), "", calendarScope)
	if err == nil {
		t.Fatal("expected error for empty credentials path")
	}
}

func TestNewHTTPClient_InvalidPath(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), "/nonexistent/path.json", calendarScope)
	if err == nil {
		t.Fatal("expected error for nonexistent credentials file")
	}
}

func TestNewHTTPClient_InvalidJSON(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewHTTPClient(context.Background(), path, calendarScope)
	if err == nil {
		t.Fatal("expected error for invalid JSON credentials")
	}
}

func TestClientOptions_PropagatesError(t *testing.T) {
	opts, err := ClientOptions(context.Background(), "/nonexistent/path.json", calendarScope)
	if err == nil {
		t.Fatal("expected error for nonexistent credentials file")
	}
	if opts != nil {
		t.Fatalf("expected no options, got %d", len(opts))
	}
}
