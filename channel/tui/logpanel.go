package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultMaxLogLines = 500

var (
	logLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim gray
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// LogPanel shows the assistant's own log output, newest at the bottom.
type LogPanel struct {
	viewport viewport.Model
	lines    []string
	maxLines int
}

// NewLogPanel creates a log panel.
func NewLogPanel() *LogPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &LogPanel{viewport: vp, maxLines: defaultMaxLogLines}
}

func (p *LogPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	if msg, ok := msg.(LogLineMsg); ok {
		p.lines = append(p.lines, styleLogLine(strings.TrimRight(msg.Line, "\n")))
		if len(p.lines) > p.maxLines {
			p.lines = p.lines[len(p.lines)-p.maxLines:]
		}
		p.viewport.SetContent(strings.Join(p.lines, "\n"))
		p.viewport.GotoBottom()
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// styleLogLine colors a slog text or JSON line by level.
func styleLogLine(line string) string {
	switch {
	case strings.Contains(line, "level=ERROR"), strings.Contains(line, `"level":"ERROR"`):
		return logErrorStyle.Render(line)
	case strings.Contains(line, "level=WARN"), strings.Contains(line, `"level":"WARN"`):
		return logWarnStyle.Render(line)
	}
	return logLineStyle.Render(line)
}

func (p *LogPanel) View() string {
	return p.viewport.View()
}

func (p *LogPanel) SetSize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height
}

// Len returns the number of retained log lines.
func (p *LogPanel) Len() int { return len(p.lines) }
