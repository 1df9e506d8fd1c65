package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var userMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true) // cyan

// ChatPanel displays the conversation in a scrollable viewport.
type ChatPanel struct {
	viewport viewport.Model
	lines    []string
}

// NewChatPanel creates a chat panel.
func NewChatPanel() *ChatPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &ChatPanel{viewport: vp}
}

func (p *ChatPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case ChatMsg:
		start := len(p.lines)
		if start > 0 {
			p.lines = append(p.lines, "")
			start++
		}
		text := msg.Text
		if msg.IsUser {
			text = userMsgStyle.Render("you> " + text)
		}
		p.lines = append(p.lines, strings.Split(text, "\n")...)
		p.viewport.SetContent(strings.Join(p.lines, "\n"))
		if msg.ScrollTop {
			p.viewport.SetYOffset(start)
		} else {
			p.viewport.GotoBottom()
		}
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ChatPanel) View() string {
	return p.viewport.View()
}

func (p *ChatPanel) SetSize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height
}

// YOffset returns the first visible line.
func (p *ChatPanel) YOffset() int { return p.viewport.YOffset }
