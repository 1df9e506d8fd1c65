// Package channel provides the surfaces a student talks to the assistant through.
package channel

import (
	"context"
	"fmt"
	"sort"

	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/terminal"
)

// MessageKind distinguishes session lifecycle events from questions.
type MessageKind int

const (
	// KindText carries a question typed by the student.
	KindText MessageKind = iota
	// KindOpen announces a new session (page load, CLI start).
	KindOpen
	// KindClose announces that a session ended.
	KindClose
)

// Message represents an incoming event from a channel.
type Message struct {
	ID        string      // Unique message ID
	ChannelID string      // Channel identifier (e.g., "web:1f0c…", "cli:local")
	SessionID string      // Conversation the message belongs to
	Kind      MessageKind //
	Text      string      // Question text for KindText
	// Terminal is the scroll-back attached to the session. Set on KindOpen;
	// nil when the session has no terminal.
	Terminal terminal.Buffer
	Metadata map[string]string
}

// ResponseKind tells the channel what to update.
type ResponseKind int

const (
	// ResponseBlock shows a rendered chat message.
	ResponseBlock ResponseKind = iota
	// ResponseLoading toggles the loading indicator.
	ResponseLoading
	// ResponseNotice shows a transient status line that is not part of the chat.
	ResponseNotice
)

// Response represents an update to send back to one session.
type Response struct {
	SessionID string
	Kind      ResponseKind
	Block     render.Block // for ResponseBlock
	Loading   bool         // for ResponseLoading
	Text      string       // for ResponseNotice
}

// Channel is the interface for chat surfaces.
type Channel interface {
	// Name returns the channel name (e.g., "web", "cli").
	Name() string

	// Start begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send delivers an update to a session.
	Send(ctx context.Context, resp *Response) error

	// Messages returns a channel for receiving incoming messages.
	Messages() <-chan *Message

	// Renderer returns how this channel wants chat text formatted.
	Renderer() render.Renderer
}

// Manager manages multiple channels as a pure registry.
type Manager struct {
	channels map[string]Channel
}

// NewManager creates a new channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the manager and logs it. Nil is silently ignored.
func (m *Manager) Register(ch Channel) {
	if ch == nil {
		return
	}
	m.channels[ch.Name()] = ch
	logger.Info("channel registered", "channel", ch.Name())
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// SendTo sends an update to a session of a named channel.
func (m *Manager) SendTo(ctx context.Context, channelName string, resp *Response) error {
	ch, ok := m.channels[channelName]
	if !ok {
		return fmt.Errorf("channel not found: %s", channelName)
	}
	return ch.Send(ctx, resp)
}

// StartAll starts all registered channels. The web server starts before
// the CLI so its address is logged before the TUI takes over the screen.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, name := range m.names() {
		if err := m.channels[name].Start(ctx); err != nil {
			return fmt.Errorf("start %s channel: %w", name, err)
		}
	}
	return nil
}

// StopAll stops all registered channels.
func (m *Manager) StopAll() error {
	for _, name := range m.names() {
		if err := m.channels[name].Stop(); err != nil {
			return err
		}
	}
	return nil
}

// Each iterates over all registered channels.
func (m *Manager) Each(fn func(Channel)) {
	for _, name := range m.names() {
		fn(m.channels[name])
	}
}

// names returns channel names with "cli" last.
func (m *Manager) names() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == "cli") != (names[j] == "cli") {
			return names[j] == "cli"
		}
		return names[i] < names[j]
	})
	return names
}
