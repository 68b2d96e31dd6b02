package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockAdapter implements Adapter for testing. It records sent messages and
// allows simulating inbound messages via SimulateInbound.
type MockAdapter struct {
	mu            sync.Mutex
	connected     bool
	closed        bool
	inboundClosed bool
	inbound       chan InboundMessage
	sent          []OutboundMessage
	files         map[string][]byte // key: attachment URL
	botUserID     string
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound: make(chan InboundMessage, 100),
		files:   make(map[string][]byte),
	}
}

// BotUserID returns the configured bot user ID (implements BotUserIDer).
func (m *MockAdapter) BotUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID
}

// SetBotUserID sets the bot user ID for testing.
func (m *MockAdapter) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = id
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound message channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message. File contents are not read; the
// message is stored as-is so tests can inspect the path.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Download returns the bytes pre-registered for the attachment's URL.
func (m *MockAdapter) Download(ctx context.Context, att Attachment) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[att.URL]
	if !ok {
		return nil, fmt.Errorf("mock adapter: no file registered for %s", att.URL)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Close shuts down the mock adapter and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	if !m.inboundClosed {
		m.inboundClosed = true
		close(m.inbound)
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *MockAdapter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// --- Test helpers ---

// RegisterFile makes bytes available to Download under the given URL.
func (m *MockAdapter) RegisterFile(url string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[url] = data
}

// CloseInbound closes the inbound channel without closing the adapter,
// simulating the platform dropping the event stream.
func (m *MockAdapter) CloseInbound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inboundClosed {
		m.inboundClosed = true
		close(m.inbound)
	}
}

// SimulateInbound sends a message into the inbound channel as if it came
// from the chat platform. Safe to call from any goroutine.
func (m *MockAdapter) SimulateInbound(msg InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.inbound <- msg
}

// LastSent returns the most recently sent outbound message.
// Returns zero value and false if no messages have been sent.
func (m *MockAdapter) LastSent() (OutboundMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return OutboundMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// SentCount returns the number of outbound messages sent.
func (m *MockAdapter) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// AllSent returns a copy of all sent outbound messages.
func (m *MockAdapter) AllSent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
