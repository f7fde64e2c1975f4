package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/integration/chat"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

const platform = "discord"

// sendFunc posts a message to a channel.
type sendFunc func(channelID, content string) error

// Bot turns Discord audio attachments and !note commands into notes.
type Bot struct {
	Session  *discordgo.Session
	captures *capture.Hub
	client   *http.Client
	maxBytes int64
	ctx      context.Context
}

// NewBot creates a new Discord bot
func NewBot(token string, captures *capture.Hub, maxBytes int64) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	if maxBytes <= 0 {
		maxBytes = transcribe.DefaultMaxBytes
	}
	bot := &Bot{
		Session:  dg,
		captures: captures,
		maxBytes: maxBytes,
		ctx:      context.Background(),
	}
	dg.AddHandler(bot.messageCreate)
	return bot, nil
}

// Run opens the websocket connection and keeps it until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	slogx.Info(ctx, "discord bot started")
	<-ctx.Done()
	return b.Session.Close()
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from self
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	b.handle(b.ctx, m.Message, func(channelID, content string) error {
		_, err := s.ChannelMessageSend(channelID, content)
		return err
	})
}

func (b *Bot) handle(ctx context.Context, m *discordgo.Message, send sendFunc) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	owner := chat.OwnerID(platform, m.Author.ID)
	ctx = slogx.WithAttrs(ctx, slogx.OwnerID(owner))
	o := b.captures.For(owner)

	reply := func(text string) {
		if err := send(m.ChannelID, text); err != nil {
			slogx.Warn(ctx, "failed to send discord reply", slogx.Err(err))
		}
	}

	if att := audioAttachment(m); att != nil {
		if int64(att.Size) > b.maxBytes {
			reply("That recording is too large.")
			return
		}
		data, err := chat.Download(ctx, b.client, att.URL, b.maxBytes)
		if err != nil {
			slogx.Warn(ctx, "failed to fetch discord attachment", slogx.Err(err))
			reply("I could not fetch that recording, please send it again.")
			return
		}
		reply(chat.Reply(o.CaptureAudio(ctx, transcribe.Audio{
			Data:     data,
			MIMEType: att.ContentType,
			Filename: att.Filename,
		})))
		return
	}

	cmd, content := ParseCommand(m.Content)
	switch cmd {
	case "!note":
		reply(chat.Reply(o.SubmitText(ctx, content)))
	case "!status":
		reply(chat.Status(o))
	}
}

func audioAttachment(m *discordgo.Message) *discordgo.MessageAttachment {
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "audio/") {
			return att
		}
	}
	return nil
}

// ParseCommand extracts the command ("!note", "!status") and its content.
func ParseCommand(text string) (command, content string) {
	text = strings.TrimSpace(text)
	head, rest, _ := strings.Cut(text, " ")
	switch head {
	case "!note":
		return head, strings.TrimSpace(rest)
	case "!status":
		return head, ""
	}
	return "", text
}
