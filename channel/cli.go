package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/terminal"
	"golang.org/x/term"
)

const (
	cliMessageBufferSize = 10
	cliStopWaitTimeout   = 500 * time.Millisecond
	cliSessionID         = "cli"
)

// CLIConfig configures the local channel.
type CLIConfig struct {
	Prompt string
	// Terminal is the scroll-back questions refer to, usually a script(1)
	// transcript. Nil means no terminal context.
	Terminal terminal.Buffer
	Width    int
}

// NewCLIChannel creates a CLI channel.
// If stdin is a terminal, it returns a TUI-based channel; otherwise a plain scanner.
func NewCLIChannel(cfg CLIConfig) Channel {
	if cfg.Prompt == "" {
		cfg.Prompt = "labmate> "
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return newTUIChannel(cfg)
	}
	plain := !term.IsTerminal(int(os.Stdout.Fd()))
	return newPlainCLIChannel(cfg, os.Stdin, os.Stdout, render.NewTerminal(cfg.Width, plain))
}

func isExitCommand(text string) bool {
	switch text {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

func openMessage(buf terminal.Buffer) *Message {
	return &Message{
		ID:        "cli-open",
		ChannelID: "cli:local",
		SessionID: cliSessionID,
		Kind:      KindOpen,
		Terminal:  buf,
	}
}

// plainCLIChannel reads questions line by line (for non-TTY use).
type plainCLIChannel struct {
	cfg          CLIConfig
	in           io.Reader
	out          io.Writer
	renderer     render.Renderer
	messages     chan *Message
	done         chan struct{}
	responseDone chan struct{}
	wg           sync.WaitGroup
	msgID        int64
	mu           sync.Mutex
	waitingResp  bool
	stopOnce     sync.Once
}

func newPlainCLIChannel(cfg CLIConfig, in io.Reader, out io.Writer, r render.Renderer) *plainCLIChannel {
	return &plainCLIChannel{
		cfg:          cfg,
		in:           in,
		out:          out,
		renderer:     r,
		messages:     make(chan *Message, cliMessageBufferSize),
		done:         make(chan struct{}),
		responseDone: make(chan struct{}, 1),
	}
}

func (c *plainCLIChannel) Name() string { return "cli" }

func (c *plainCLIChannel) Renderer() render.Renderer { return c.renderer }

func (c *plainCLIChannel) Messages() <-chan *Message { return c.messages }

func (c *plainCLIChannel) Start(ctx context.Context) error {
	logger.Info("cli channel started (plain mode)")

	c.messages <- openMessage(c.cfg.Terminal)

	c.wg.Add(1)
	go c.readInput(ctx)
	return nil
}

func (c *plainCLIChannel) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)

		waitDone := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waitDone)
		}()

		select {
		case <-waitDone:
			close(c.messages)
		case <-time.After(cliStopWaitTimeout):
			logger.Warn("cli channel stop timed out waiting for input loop")
		}

		logger.Info("cli channel stopped")
	})
	return nil
}

// Send prints answers and errors. The question is already on screen, so
// user blocks are not echoed; loading only prints a hint.
func (c *plainCLIChannel) Send(_ context.Context, resp *Response) error {
	switch {
	case resp.Kind == ResponseLoading:
		if resp.Loading {
			fmt.Fprintln(c.out, "thinking...")
		}
		return nil
	case resp.Kind == ResponseNotice:
		fmt.Fprintln(c.out, resp.Text)
		return nil
	case resp.Block.Role == provider.RoleUser:
		return nil
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, resp.Block.Body)
	fmt.Fprintln(c.out)

	// Every question ends with exactly one model block: the answer or an error.
	if c.completeWaitingResponse() {
		select {
		case c.responseDone <- struct{}{}:
		default:
		}
	} else {
		fmt.Fprint(c.out, c.cfg.Prompt)
	}
	return nil
}

func (c *plainCLIChannel) readInput(ctx context.Context) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.in)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
			fmt.Fprint(c.out, c.cfg.Prompt)

			if !scanner.Scan() {
				return
			}

			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if isExitCommand(text) {
				fmt.Fprintln(c.out, "Goodbye!")
				return
			}

			c.msgID++
			msg := &Message{
				ID:        fmt.Sprintf("cli-%d", c.msgID),
				ChannelID: "cli:local",
				SessionID: cliSessionID,
				Kind:      KindText,
				Text:      text,
			}

			select {
			case <-c.responseDone:
			default:
			}
			c.setWaitingResponse(true)

			select {
			case c.messages <- msg:
			case <-c.done:
				c.setWaitingResponse(false)
				return
			case <-ctx.Done():
				c.setWaitingResponse(false)
				return
			}

			select {
			case <-c.responseDone:
			case <-c.done:
				c.setWaitingResponse(false)
				return
			case <-ctx.Done():
				c.setWaitingResponse(false)
				return
			}
		}
	}
}

func (c *plainCLIChannel) setWaitingResponse(v bool) {
	c.mu.Lock()
	c.waitingResp = v
	c.mu.Unlock()
}

func (c *plainCLIChannel) completeWaitingResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.waitingResp {
		return false
	}
	c.waitingResp = false
	return true
}
