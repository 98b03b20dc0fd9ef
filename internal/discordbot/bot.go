// Package discordbot implements the Discord sidecar process: a thin
// gateway-connected bot that normalizes inbound events into the hub's
// canonical InboundMessage shape and forwards them to the core over a
// Unix socket, while exposing its own socket for outbound sends and
// health probes.
package discordbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/namastexlabs/automagik-omni/internal/bus"
)

// Bot wraps a discordgo gateway session for one instance's bot token and
// forwards normalized events to the core's inbound socket.
type Bot struct {
	Instance   string
	CoreSocket string

	session     *discordgo.Session
	client      *http.Client
	botID       string
	connectedAt time.Time
}

// New creates a Bot for the given instance and Discord bot token.
func New(instanceName, token, coreSocketPath string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordbot: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Bot{
		Instance:   instanceName,
		CoreSocket: coreSocketPath,
		session:    session,
		client:     unixSocketHTTPClient(coreSocketPath),
	}, nil
}

// Start opens the gateway connection and begins forwarding events.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.handleMessageCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discordbot: open gateway: %w", err)
	}

	me, err := b.session.User("@me")
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("discordbot: fetch identity: %w", err)
	}
	b.botID = me.ID
	b.connectedAt = time.Now()

	slog.Info("discordbot connected", "instance", b.Instance, "username", me.Username, "id", me.ID)
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop(_ context.Context) error {
	b.connectedAt = time.Time{}
	return b.session.Close()
}

// Connected reports whether the gateway session completed its handshake
// and has not since been stopped, and for how long.
func (b *Bot) Connected() (bool, time.Duration) {
	if b.connectedAt.IsZero() {
		return false, 0
	}
	return true, time.Since(b.connectedAt)
}

// SendText delivers a single pre-split segment to a Discord channel. The
// dispatcher on the core side is responsible for staying under the
// 2000-character cap before calling this.
func (b *Bot) SendText(channelID, text string) (string, error) {
	msg, err := b.session.ChannelMessageSend(channelID, text)
	if err != nil {
		return "", fmt.Errorf("discordbot: send message: %w", err)
	}
	return msg.ID, nil
}

func (b *Bot) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.botID {
		return
	}

	channelID := m.ChannelID
	isDM := m.GuildID == ""

	content := m.Content
	var media []bus.MediaAttachment
	for _, att := range m.Attachments {
		media = append(media, bus.MediaAttachment{URL: att.URL, ContentType: att.ContentType})
	}

	kind := bus.KindText
	if len(media) > 0 {
		kind = bus.KindMedia
	}
	if !isDM {
		kind = bus.KindGroupEvent
	}

	msg := bus.InboundMessage{
		Instance:   b.Instance,
		Channel:    "discord",
		Kind:       kind,
		MessageID:  m.ID,
		SenderID:   m.Author.ID,
		SenderName: resolveDisplayName(m),
		ChatID:     channelID,
		IsGroup:    !isDM,
		Content:    content,
		Media:      media,
		ReceivedAt: time.Now(),
		Metadata: map[string]string{
			"guild_id": m.GuildID,
			"username": m.Author.Username,
		},
	}

	if err := b.forward(msg); err != nil {
		slog.Error("discordbot: forward to core failed", "instance", b.Instance, "error", err)
	}
}

// forward POSTs the normalized event to the core's inbound socket.
func (b *Bot) forward(msg bus.InboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, "http://unix/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("core returned status %d", resp.StatusCode)
	}
	return nil
}

func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
