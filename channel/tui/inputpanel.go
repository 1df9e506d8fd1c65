package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

// InputPanel provides the question line. While an answer is pending it shows
// a spinner and ignores Enter.
type InputPanel struct {
	input   textinput.Model
	spinner spinner.Model
	busy    bool
	width   int
}

// NewInputPanel creates an input panel with the given prompt.
func NewInputPanel(prompt string) *InputPanel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = "ask about your terminal"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &InputPanel{input: ti, spinner: sp}
}

func (p *InputPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadingMsg:
		p.busy = msg.On
		if p.busy {
			return p, p.spinner.Tick
		}
		return p, nil
	case spinner.TickMsg:
		if !p.busy {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(p.input.Value())
			if text == "" || p.busy {
				return p, nil
			}
			p.input.Reset()
			return p, func() tea.Msg { return InputSubmitMsg{Text: text} }
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *InputPanel) View() string {
	if p.busy {
		return p.spinner.View() + pendingStyle.Render(" thinking... ") + p.input.View()
	}
	return p.input.View()
}

func (p *InputPanel) SetSize(width, _ int) {
	p.width = width
	p.input.Width = max(width-len(p.input.Prompt)-16, 10)
}

// Busy reports whether an answer is pending.
func (p *InputPanel) Busy() bool { return p.busy }
