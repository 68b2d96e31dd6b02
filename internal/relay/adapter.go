// Package relay bridges valet's commands to chat platforms (Slack, Discord, etc.).
package relay

import (
	"context"
	"io"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
// Each adapter handles connection management, message sending/receiving, and
// attachment retrieval for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Download fetches the bytes of an inbound attachment. The caller
	// must close the returned reader.
	Download(ctx context.Context, att Attachment) (io.ReadCloser, error)

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform    string       // e.g. "slack", "discord"
	ChannelID   string       // platform-specific channel identifier
	ThreadID    string       // thread/conversation identifier (empty if top-level)
	UserID      string       // platform-specific user identifier
	UserName    string       // human-readable username
	Text        string       // raw message text
	Attachments []Attachment // files attached to the message
	Timestamp   time.Time    // when the message was sent
}

// Attachment describes a file the platform is hosting on the sender's
// behalf. The bytes are fetched on demand via Adapter.Download.
type Attachment struct {
	Name        string // original filename
	ContentType string // MIME hint from the platform (may be empty)
	Size        int64  // declared size in bytes (0 if unknown)
	URL         string // platform download URL
}

// OutboundMessage represents a message to be sent to the chat platform.
// It carries text, a file, or both.
type OutboundMessage struct {
	ChannelID string // target channel
	ThreadID  string // thread to reply in (empty for new top-level message)
	Text      string // message text (platform-native formatting)
	File      *File  // file to upload alongside the text
}

// File is an outbound file upload, read from a local path at send time.
type File struct {
	Name    string // filename shown to the recipient
	Path    string // local path to read the bytes from
	Caption string // optional caption (platforms that support one)
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
