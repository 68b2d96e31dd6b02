// Package slack implements the relay Adapter for Slack using Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nibras/valet/internal/relay"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for reconnection.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff for reconnection.
	maxBackoff = 2 * time.Minute
	// maxReconnectAttempts limits reconnection retries before giving up.
	maxReconnectAttempts = 10
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
	UploadFile(params slackapi.UploadFileParameters) (*slackapi.FileSummary, error)
	GetUserInfo(userID string) (*slackapi.User, error)
}

// The real client must keep satisfying the seam.
var _ slackClient = (*slackapi.Client)(nil)

// socketClient abstracts the Socket Mode client methods we use.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) Run() error                        { return r.client.Run() }
func (r *realSocketClient) EventsChan() chan socketmode.Event { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Adapter implements relay.Adapter for Slack Socket Mode.
type Adapter struct {
	client       slackClient
	socket       socketClient
	botUserID    string
	appToken     string
	botToken     string
	channelID    string // default channel for messages without explicit channel
	httpClient   *http.Client
	mu           sync.Mutex
	connected    bool
	closed       bool
	inbound      chan relay.InboundMessage
	cancelFunc   context.CancelFunc
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	maxReconnect int
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	AppToken  string // xapp-... Slack app-level token for Socket Mode
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // default channel to post to
	// For testing: inject mock clients instead of real Slack API.
	Client slackClient
	Socket socketClient
	// For testing: attachment downloads; defaults to a 30s-timeout client.
	HTTP *http.Client
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	a := &Adapter{
		appToken:     opts.AppToken,
		botToken:     opts.BotToken,
		channelID:    opts.ChannelID,
		httpClient:   hc,
		inbound:      make(chan relay.InboundMessage, 100),
		baseBackoff:  baseBackoff,
		maxBackoff:   maxBackoff,
		maxReconnect: maxReconnectAttempts,
	}

	if opts.Client != nil {
		a.client = opts.Client
	}
	if opts.Socket != nil {
		a.socket = opts.Socket
	}

	return a, nil
}

// Connect establishes the Socket Mode WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	// Create real clients if not injected (production path).
	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = &realSocketClient{client: socketmode.New(api)}
	}

	// Get bot user ID for self-message filtering.
	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages. Starts the Socket Mode
// event pump in a background goroutine. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan relay.InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	listenCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()

	// Start socket mode in background with reconnection logic.
	go a.runWithReconnect(listenCtx)

	// Pump events from socket mode to inbound channel.
	go a.pumpEvents(listenCtx)

	return a.inbound, nil
}

// Send delivers a message to Slack, uploading the file if one is attached.
func (a *Adapter) Send(ctx context.Context, msg relay.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	if msg.File != nil {
		return a.sendFile(ctx, channelID, msg)
	}

	var options []slackapi.MsgOption
	if msg.ThreadID != "" {
		options = append(options, slackapi.MsgOptionTS(msg.ThreadID))
	}
	options = append(options, slackapi.MsgOptionText(msg.Text, false))

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessage(channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// sendFile uploads an outbound file with the external-upload flow. The
// message text rides along as the initial comment. The upload API rejects
// a zero FileSize, so the staged file is stat'd first.
func (a *Adapter) sendFile(ctx context.Context, channelID string, msg relay.OutboundMessage) error {
	comment := msg.Text
	if comment == "" {
		comment = msg.File.Caption
	}
	info, err := os.Stat(msg.File.Path)
	if err != nil {
		return fmt.Errorf("slack: stat %s: %w", msg.File.Name, err)
	}
	params := slackapi.UploadFileParameters{
		Channel:         channelID,
		ThreadTimestamp: msg.ThreadID,
		File:            msg.File.Path,
		FileSize:        int(info.Size()),
		Filename:        msg.File.Name,
		Title:           msg.File.Name,
		InitialComment:  comment,
	}
	err = retryOnRateLimit(ctx, func() error {
		_, upErr := a.client.UploadFile(params)
		return upErr
	})
	if err != nil {
		return fmt.Errorf("slack: upload file: %w", err)
	}
	return nil
}

// Download fetches the bytes of an inbound attachment. Slack file URLs
// require the bot token as a bearer credential.
func (a *Adapter) Download(ctx context.Context, att relay.Attachment) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("slack: build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.botToken)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack: download %s: %w", att.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("slack: download %s: status %d", att.Name, resp.StatusCode)
	}
	return resp.Body, nil
}

// Close shuts down the adapter and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	close(a.inbound)
	return nil
}

// BotUserID returns the bot's Slack user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// runWithReconnect runs the Socket Mode client and retries with exponential
// backoff when Run() returns an error (e.g., reconnection failure).
func (a *Adapter) runWithReconnect(ctx context.Context) {
	for attempt := 0; attempt < a.maxReconnect; attempt++ {
		err := a.socket.Run()
		if err == nil {
			return // clean shutdown
		}

		// Check if we're shutting down.
		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("slack: socket mode disconnected (attempt %d/%d): %v, reconnecting in %v",
			attempt+1, a.maxReconnect, err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	log.Printf("slack: socket mode exhausted %d reconnection attempts, giving up", a.maxReconnect)
}

// pumpEvents reads Socket Mode events and converts them to InboundMessages.
func (a *Adapter) pumpEvents(ctx context.Context) {
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(evt)
		}
	}
}

// handleSocketEvent processes a single Socket Mode event.
func (a *Adapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		// Acknowledge the event.
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		a.handleEventsAPI(eventsAPIEvent)

	case socketmode.EventTypeConnecting:
		log.Printf("slack: connecting to Socket Mode...")

	case socketmode.EventTypeConnected:
		log.Printf("slack: connected to Socket Mode")

	case socketmode.EventTypeConnectionError:
		log.Printf("slack: connection error: %v", evt.Data)

	case socketmode.EventTypeDisconnect:
		log.Printf("slack: server requested disconnect, will reconnect")
	}
}

// handleEventsAPI processes Events API callbacks.
func (a *Adapter) handleEventsAPI(event slackevents.EventsAPIEvent) {
	switch event.Type {
	case slackevents.CallbackEvent:
		innerEvent := event.InnerEvent
		if ev, ok := innerEvent.Data.(*slackevents.MessageEvent); ok {
			a.handleMessage(ev)
		}
	}
}

// handleMessage converts a Slack message event to an InboundMessage.
func (a *Adapter) handleMessage(ev *slackevents.MessageEvent) {
	// Filter bot self-messages.
	if ev.User == a.botUserID {
		return
	}
	// Filter bot messages. Subtypes cover edits and deletes; file shares
	// arrive as subtype "file_share" and must pass through.
	if ev.BotID != "" {
		return
	}
	if ev.SubType != "" && ev.SubType != "file_share" {
		return
	}

	// File shares ride on the normalized message payload, not on the
	// event struct itself.
	var atts []relay.Attachment
	if ev.Message != nil {
		for _, f := range ev.Message.Files {
			atts = append(atts, relay.Attachment{
				Name:        f.Name,
				ContentType: f.Mimetype,
				Size:        int64(f.Size),
				URL:         f.URLPrivateDownload,
			})
		}
	}

	a.inbound <- relay.InboundMessage{
		Platform:    "slack",
		ChannelID:   ev.Channel,
		ThreadID:    ev.ThreadTimeStamp,
		UserID:      ev.User,
		UserName:    a.resolveUserName(ev.User),
		Text:        ev.Text,
		Attachments: atts,
		Timestamp:   parseSlackTimestamp(ev.TimeStamp),
	}
}

// resolveUserName looks up a user's display name. Falls back to user ID.
func (a *Adapter) resolveUserName(userID string) string {
	if userID == "" {
		return ""
	}
	user, err := a.client.GetUserInfo(userID)
	if err != nil {
		return userID
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	return user.RealName
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}

// parseSlackTimestamp converts a Slack timestamp (e.g., "1234567890.123456")
// to a time.Time.
func parseSlackTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) == 0 {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
