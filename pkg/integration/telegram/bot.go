package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/integration/chat"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

const platform = "telegram"

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot turns Telegram voice messages and /note commands into notes.
type Bot struct {
	api      botAPI
	captures *capture.Hub
	client   *http.Client
	maxBytes int64
}

// NewBot creates a new Telegram bot
func NewBot(token string, captures *capture.Hub, maxBytes int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}
	return newBot(api, captures, maxBytes), nil
}

func newBot(api botAPI, captures *capture.Hub, maxBytes int64) *Bot {
	if maxBytes <= 0 {
		maxBytes = transcribe.DefaultMaxBytes
	}
	return &Bot{api: api, captures: captures, maxBytes: maxBytes}
}

// Run polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	slogx.Info(ctx, "telegram bot started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				// captures of different users run concurrently
				go b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	owner := chat.OwnerID(platform, msg.From.ID)
	ctx = slogx.WithAttrs(ctx, slogx.OwnerID(owner))
	o := b.captures.For(owner)

	if audio, fileID, ok := audioOf(msg); ok {
		data, err := b.download(ctx, fileID)
		if err != nil {
			slogx.Warn(ctx, "failed to fetch telegram audio", slogx.Err(err))
			b.reply(ctx, msg, "I could not fetch that recording, please send it again.")
			return
		}
		audio.Data = data
		b.reply(ctx, msg, chat.Reply(o.CaptureAudio(ctx, audio)))
		return
	}

	cmd, content := ParseCommand(msg.Text)
	switch cmd {
	case "/note":
		b.reply(ctx, msg, chat.Reply(o.SubmitText(ctx, content)))
	case "/status":
		b.reply(ctx, msg, chat.Status(o))
	case "/start", "/help":
		b.reply(ctx, msg, "Send a voice message, or /note <text> to save a typed note.")
	}
}

func audioOf(msg *tgbotapi.Message) (transcribe.Audio, string, bool) {
	switch {
	case msg.Voice != nil:
		return transcribe.Audio{MIMEType: msg.Voice.MimeType, Filename: "voice.ogg"}, msg.Voice.FileID, true
	case msg.Audio != nil:
		return transcribe.Audio{MIMEType: msg.Audio.MimeType, Filename: msg.Audio.FileName}, msg.Audio.FileID, true
	}
	return transcribe.Audio{}, "", false
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}
	return chat.Download(ctx, b.client, url, b.maxBytes)
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(reply); err != nil {
		slogx.Warn(ctx, "failed to send telegram reply", slogx.Err(err), slog.Int64("chat_id", msg.Chat.ID))
	}
}

// ParseCommand extracts the command and content from a message text.
// Returns the command (e.g. "/note", "/status") and the remaining content.
// A "@botname" suffix on the command is ignored.
func ParseCommand(text string) (command, content string) {
	text = strings.TrimSpace(text)
	head, rest, _ := strings.Cut(text, " ")
	head, _, _ = strings.Cut(head, "@")

	switch head {
	case "/note":
		return "/note", strings.TrimSpace(rest)
	case "/status", "/start", "/help":
		return head, ""
	}
	return "", text
}
