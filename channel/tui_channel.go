package channel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linanwx/labmate/channel/tui"
	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
)

const tuiMessageBufferSize = 64

// TUIChannel implements the Channel interface using a bubbletea TUI.
type TUIChannel struct {
	cfg      CLIConfig
	app      *tui.App
	program  *tea.Program
	renderer *render.Terminal
	messages chan *Message
	done     chan struct{}
	wg       sync.WaitGroup
	msgID    atomic.Int64
	stopOnce sync.Once
}

func newTUIChannel(cfg CLIConfig) *TUIChannel {
	return &TUIChannel{
		cfg:      cfg,
		renderer: render.NewTerminal(cfg.Width, false),
		messages: make(chan *Message, tuiMessageBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *TUIChannel) Name() string { return "cli" }

func (c *TUIChannel) Renderer() render.Renderer { return c.renderer }

func (c *TUIChannel) Messages() <-chan *Message { return c.messages }

func (c *TUIChannel) Start(ctx context.Context) error {
	title := "labmate"
	if t, ok := c.cfg.Terminal.(interface{ Path() string }); ok {
		title += " · " + t.Path()
	}
	c.app = tui.NewApp(c.cfg.Prompt, title)
	c.program = tea.NewProgram(c.app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Redirect logger output to the TUI log panel.
	logger.Intercept(&logWriter{program: c.program})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		}
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		// Send SIGINT to trigger serve.go's graceful shutdown.
		p, _ := os.FindProcess(os.Getpid())
		if p != nil {
			_ = p.Signal(syscall.SIGINT)
		}
	}()

	c.messages <- openMessage(c.cfg.Terminal)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case text, ok := <-c.app.InputCh:
				if !ok {
					return
				}
				if isExitCommand(text) {
					c.program.Quit()
					return
				}
				id := c.msgID.Add(1)
				select {
				case c.messages <- &Message{
					ID:        fmt.Sprintf("cli-%d", id),
					ChannelID: "cli:local",
					SessionID: cliSessionID,
					Kind:      KindText,
					Text:      text,
				}:
				case <-c.done:
					return
				}
			}
		}
	}()

	logger.Info("cli channel started (TUI mode)")
	return nil
}

func (c *TUIChannel) Stop() error {
	c.stopOnce.Do(func() {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		if c.program != nil {
			c.program.Quit()
		}
		c.wg.Wait()
		logger.Restore()
		close(c.messages)
		logger.Info("cli channel stopped")
	})
	return nil
}

func (c *TUIChannel) Send(_ context.Context, resp *Response) error {
	if c.program == nil {
		return nil
	}
	if resp.Kind == ResponseLoading {
		c.program.Send(tui.LoadingMsg{On: resp.Loading})
		return nil
	}
	if resp.Kind == ResponseNotice {
		c.program.Send(tui.LogLineMsg{Line: resp.Text})
		return nil
	}
	c.program.Send(tui.ChatMsg{
		Text:      resp.Block.Body,
		IsUser:    resp.Block.Role == provider.RoleUser,
		ScrollTop: resp.Block.Scroll == render.ScrollMessageTop,
	})
	return nil
}

// logWriter implements io.Writer and sends each write as a LogLineMsg to the TUI.
type logWriter struct {
	program *tea.Program
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.program.Send(tui.LogLineMsg{Line: string(line)})
	}
	return len(p), nil
}
