// Package tui provides a terminal user interface for the CLI channel.
package tui

import tea "github.com/charmbracelet/bubbletea"

// Panel is a composable TUI region with its own state, update logic, and view.
// The root App model orchestrates panels without knowing their internals.
type Panel interface {
	Update(tea.Msg) (Panel, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// LogLineMsg carries a single log line from the logger writer.
type LogLineMsg struct{ Line string }

// ChatMsg carries a rendered chat message for the conversation panel.
type ChatMsg struct {
	Text   string
	IsUser bool
	// ScrollTop positions the viewport at the first line of this message
	// instead of the end of the conversation.
	ScrollTop bool
}

// LoadingMsg toggles the pending-answer state.
type LoadingMsg struct{ On bool }

// InputSubmitMsg is emitted when the user presses Enter in the input panel.
type InputSubmitMsg struct{ Text string }

var (
	_ Panel = (*LogPanel)(nil)
	_ Panel = (*ChatPanel)(nil)
	_ Panel = (*InputPanel)(nil)
)
