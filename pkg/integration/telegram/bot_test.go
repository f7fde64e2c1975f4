package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCmd     string
		wantContent string
	}{
		{
			name:        "note command with content",
			input:       "/note Buy groceries",
			wantCmd:     "/note",
			wantContent: "Buy groceries",
		},
		{
			name:        "note command addressed to the bot",
			input:       "/note@notepilot_bot  Call mom ",
			wantCmd:     "/note",
			wantContent: "Call mom",
		},
		{
			name:        "note command without content",
			input:       "/note",
			wantCmd:     "/note",
			wantContent: "",
		},
		{
			name:        "status command",
			input:       "/status",
			wantCmd:     "/status",
			wantContent: "",
		},
		{
			name:        "unknown command",
			input:       "/weather",
			wantCmd:     "",
			wantContent: "/weather",
		},
		{
			name:        "plain text",
			input:       "hello world",
			wantCmd:     "",
			wantContent: "hello world",
		},
		{
			name:        "note without space is not a command",
			input:       "/notefoo",
			wantCmd:     "",
			wantContent: "/notefoo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, content := ParseCommand(tt.input)
			if cmd != tt.wantCmd {
				t.Errorf("ParseCommand(%q) command = %q, want %q", tt.input, cmd, tt.wantCmd)
			}
			if content != tt.wantContent {
				t.Errorf("ParseCommand(%q) content = %q, want %q", tt.input, content, tt.wantContent)
			}
		})
	}
}

type fakeAPI struct {
	fileURL string

	mu   sync.Mutex
	sent []string
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

type memStore struct {
	note.Store

	mu    sync.Mutex
	notes []note.Note
}

func (m *memStore) Insert(_ context.Context, ownerID string, d note.Draft) (note.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := note.Note{ID: "n1", OwnerID: ownerID, Content: d.Content, Title: d.Title, Tags: d.Tags, Category: d.Category}
	m.notes = append(m.notes, n)
	return n, nil
}

type stubTranscriber struct {
	mime string
}

func (s *stubTranscriber) Transcribe(_ context.Context, a transcribe.Audio) (transcribe.Result, error) {
	s.mime = a.MIMEType
	return transcribe.Result{Text: string(a.Data)}, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *memStore, *stubTranscriber) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Pick up the parcel"))
	}))
	t.Cleanup(server.Close)

	api := &fakeAPI{fileURL: server.URL + "/file/voice.oga"}
	store := &memStore{}
	stt := &stubTranscriber{}
	hub := capture.NewHub(capture.Deps{Store: store, Transcriber: stt})
	return newBot(api, hub, 0), api, store, stt
}

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
	}
}

func TestHandleVoice(t *testing.T) {
	bot, api, store, stt := newTestBot(t)

	msg := message("")
	msg.Voice = &tgbotapi.Voice{FileID: "f1", MimeType: "audio/ogg"}
	bot.handleMessage(context.Background(), msg)

	if len(store.notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(store.notes))
	}
	n := store.notes[0]
	if n.OwnerID != "telegram:42" || n.Content != "Pick up the parcel" || n.Category.Main != note.CategoryVoiceNote {
		t.Errorf("unexpected note: %+v", n)
	}
	if stt.mime != "audio/ogg" {
		t.Errorf("mime = %q", stt.mime)
	}
	if len(api.sent) != 1 || !strings.HasPrefix(api.sent[0], "Saved: Pick up the parcel") {
		t.Errorf("unexpected replies: %q", api.sent)
	}
}

func TestHandleNoteCommand(t *testing.T) {
	bot, api, store, _ := newTestBot(t)

	bot.handleMessage(context.Background(), message("/note ok"))
	if len(store.notes) != 0 {
		t.Fatalf("short note must not be stored")
	}

	bot.handleMessage(context.Background(), message("/note Renew passport"))
	if len(store.notes) != 1 || store.notes[0].Category.Main != note.CategoryNote {
		t.Fatalf("unexpected notes: %+v", store.notes)
	}

	bot.handleMessage(context.Background(), message("/status"))
	bot.handleMessage(context.Background(), message("just chatting"))

	want := []string{
		"No speech detected, try recording again.",
		"Saved: Renew passport",
		"Notepilot is online. Send a voice message or a note to capture it.",
	}
	if strings.Join(api.sent, "|") != strings.Join(want, "|") {
		t.Errorf("replies = %q, want %q", api.sent, want)
	}
}
