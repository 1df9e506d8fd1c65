package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultLogRatio = 0.25

var (
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
)

// App is the root bubbletea model: a log strip on top, the conversation in
// the middle and the question line at the bottom.
type App struct {
	logPanel   *LogPanel
	chatPanel  *ChatPanel
	inputPanel *InputPanel
	title      string

	width, height int
	logRatio      float64

	// InputCh receives questions typed by the user.
	InputCh chan string
}

// NewApp creates the root TUI model. title is shown in the separator above
// the conversation.
func NewApp(prompt, title string) *App {
	return &App{
		logPanel:   NewLogPanel(),
		chatPanel:  NewChatPanel(),
		inputPanel: NewInputPanel(prompt),
		title:      title,
		logRatio:   defaultLogRatio,
		InputCh:    make(chan string, 16),
	}
}

func (m *App) Init() tea.Cmd {
	return nil
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			_, cmd = m.chatPanel.Update(msg)
			return m, cmd
		}
		_, cmd = m.inputPanel.Update(msg)

	case InputSubmitMsg:
		select {
		case m.InputCh <- msg.Text:
		default:
		}

	case LogLineMsg:
		_, cmd = m.logPanel.Update(msg)

	case ChatMsg:
		_, cmd = m.chatPanel.Update(msg)

	case tea.MouseMsg:
		_, cmd = m.chatPanel.Update(msg)

	default:
		// Loading and spinner ticks belong to the input line.
		_, cmd = m.inputPanel.Update(msg)
	}

	return m, cmd
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.logPanel.View(),
		m.separator(m.title),
		m.chatPanel.View(),
		m.separator(""),
		m.inputPanel.View(),
	)
}

func (m *App) separator(label string) string {
	if label == "" {
		return separatorStyle.Render(strings.Repeat("─", m.width))
	}
	head := "── " + titleStyle.Render(label) + " "
	rest := max(m.width-lipgloss.Width(head), 0)
	return separatorStyle.Render("── ") + titleStyle.Render(label) + " " + separatorStyle.Render(strings.Repeat("─", rest))
}

func (m *App) recalcLayout() {
	const inputH = 1
	const sepLines = 2

	usable := max(m.height-inputH-sepLines, 2)
	logH := max(int(float64(usable)*m.logRatio), 1)
	chatH := max(usable-logH, 1)

	m.logPanel.SetSize(m.width, logH)
	m.chatPanel.SetSize(m.width, chatH)
	m.inputPanel.SetSize(m.width, inputH)
}
