// Package discord implements the relay Adapter for Discord using the Gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nibras/valet/internal/relay"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) Channel(channelID string) (*discordgo.Channel, error) {
	return r.s.State.Channel(channelID)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements relay.Adapter for Discord via the Gateway WebSocket.
type Adapter struct {
	sess          session
	botToken      string
	channelID     string // default channel for messages
	botUserID     string
	httpClient    *http.Client
	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan relay.InboundMessage
	removeHandler func()
	baseBackoff   time.Duration
	maxBackoff    time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // default channel to post to
	// For testing: inject a mock session instead of real Discord API.
	Session session
	// For testing: attachment downloads; defaults to a 30s-timeout client.
	HTTP *http.Client
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	a := &Adapter{
		botToken:    opts.BotToken,
		channelID:   opts.ChannelID,
		httpClient:  hc,
		inbound:     make(chan relay.InboundMessage, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}

	if opts.Session != nil {
		a.sess = opts.Session
	}

	return a, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	// Create real session if not injected (production path).
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	// Register Ready handler to capture bot user ID on connect/reconnect.
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})

	// discordgo reconnects on its own; log the transitions for observability.
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Resumed) {
		log.Printf("discord: gateway session resumed")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages from Discord. Registers a
// message handler on the Gateway session. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan relay.InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	remove := a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})

	a.mu.Lock()
	a.removeHandler = remove
	a.mu.Unlock()

	return a.inbound, nil
}

// Send delivers a message to Discord, uploading the file if one is attached.
func (a *Adapter) Send(ctx context.Context, msg relay.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	// In Discord, threads are channels. If ThreadID is set, send there directly.
	channelID := msg.ThreadID
	if channelID == "" {
		channelID = msg.ChannelID
	}
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}

	data := &discordgo.MessageSend{Content: msg.Text}

	var upload *os.File
	if msg.File != nil {
		f, err := os.Open(msg.File.Path)
		if err != nil {
			return fmt.Errorf("discord: open upload %s: %w", msg.File.Path, err)
		}
		defer f.Close()
		upload = f
		data.Files = []*discordgo.File{{Name: msg.File.Name, Reader: f}}
		if msg.File.Caption != "" && data.Content == "" {
			data.Content = msg.File.Caption
		}
	}

	err := a.retryOnRateLimit(ctx, func() error {
		// A retried send re-reads the upload, so rewind it each attempt.
		if upload != nil {
			if _, seekErr := upload.Seek(0, io.SeekStart); seekErr != nil {
				return fmt.Errorf("discord: rewind upload %s: %w", msg.File.Name, seekErr)
			}
		}
		_, sendErr := a.sess.ChannelMessageSendComplex(channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Download fetches the bytes of an inbound attachment from the Discord CDN.
func (a *Adapter) Download(ctx context.Context, att relay.Attachment) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("discord: build download request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord: download %s: %w", att.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("discord: download %s: status %d", att.Name, resp.StatusCode)
	}
	return resp.Body, nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// handleMessage converts a Discord message event to an InboundMessage.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	// Filter bot self-messages.
	a.mu.Lock()
	botID := a.botUserID
	a.mu.Unlock()
	if m.Author.ID == botID {
		return
	}

	// Filter other bots.
	if m.Author.Bot {
		return
	}

	// Determine thread context. In Discord threads are channels, so a message
	// sent inside a thread carries the thread ID as its ChannelID. Look up the
	// channel from the state cache to detect this and resolve the parent.
	channelID := m.ChannelID
	threadID := ""
	if ch, err := a.sess.Channel(m.ChannelID); err == nil && ch.IsThread() {
		channelID = ch.ParentID
		threadID = m.ChannelID
	}

	var atts []relay.Attachment
	for _, da := range m.Attachments {
		atts = append(atts, relay.Attachment{
			Name:        da.Filename,
			ContentType: da.ContentType,
			Size:        int64(da.Size),
			URL:         da.URL,
		})
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)

	a.inbound <- relay.InboundMessage{
		Platform:    "discord",
		ChannelID:   channelID,
		ThreadID:    threadID,
		UserID:      m.Author.ID,
		UserName:    m.Author.Username,
		Text:        m.Content,
		Attachments: atts,
		Timestamp:   ts,
	}
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d) — retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
