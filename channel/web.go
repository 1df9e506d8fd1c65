package channel

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/linanwx/labmate/internal/health"
	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/terminal"
	"golang.org/x/time/rate"
)

const (
	webMessageBufferSize = 64
	webReadLimit         = 64 << 10
	webWriteTimeout      = 5 * time.Second
	webShutdownTimeout   = 5 * time.Second
)

//go:embed static
var staticFiles embed.FS

// WebConfig configures the browser channel.
type WebConfig struct {
	Addr           string
	RatePerMinute  int // chat questions per connection, <= 0 = unlimited
	Burst          int
	AllowedOrigins []string

	Terminal     bool // spawn a shell per connection
	Shell        string
	MaxLines     int
	MaxLineWidth int
}

// WebChannel serves the chat widget and a terminal over one websocket per page.
type WebChannel struct {
	cfg      WebConfig
	renderer *render.HTML
	messages chan *Message

	server   *http.Server
	listener net.Listener

	mu       sync.RWMutex
	sessions map[string]*webSession

	msgID     atomic.Int64
	startedAt time.Time
	done      chan struct{}
	stopOnce  sync.Once
}

type webSession struct {
	id      string
	conn    *websocket.Conn
	shell   *terminal.Shell
	limiter *rate.Limiter
}

// clientFrame is sent by the page.
type clientFrame struct {
	Type string `json:"type"` // chat, term-input, term-resize
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// serverFrame is sent to the page.
type serverFrame struct {
	Type     string `json:"type"` // hello, message, loading, term-output, notice
	Session  string `json:"session,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
	Role     string `json:"role,omitempty"`
	HTML     string `json:"html,omitempty"`
	Scroll   string `json:"scroll,omitempty"`
	Loading  *bool  `json:"loading,omitempty"`
	Data     string `json:"data,omitempty"` // base64 pty output
	Text     string `json:"text,omitempty"`
}

// NewWebChannel creates the browser channel.
func NewWebChannel(cfg WebConfig) *WebChannel {
	return &WebChannel{
		cfg:       cfg,
		renderer:  render.NewHTML(),
		messages:  make(chan *Message, webMessageBufferSize),
		sessions:  make(map[string]*webSession),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (c *WebChannel) Name() string { return "web" }

func (c *WebChannel) Renderer() render.Renderer { return c.renderer }

func (c *WebChannel) Messages() <-chan *Message { return c.messages }

// Handler returns the HTTP routes of the channel.
func (c *WebChannel) Handler() http.Handler {
	static, _ := fs.Sub(staticFiles, "static")
	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServer(http.FS(static)))
	mux.HandleFunc("GET /ws", c.handleWS)
	mux.HandleFunc("GET /healthz", c.handleHealth)
	return mux
}

func (c *WebChannel) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.cfg.Addr, err)
	}
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server error", "err", err)
		}
	}()

	logger.Info("web channel started", "addr", ln.Addr().String(), "terminal", c.cfg.Terminal)
	return nil
}

// Addr returns the address the server listens on, once started.
func (c *WebChannel) Addr() string {
	if c.listener == nil {
		return c.cfg.Addr
	}
	return c.listener.Addr().String()
}

func (c *WebChannel) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		for _, s := range c.sessions {
			s.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		c.mu.Unlock()

		if c.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), webShutdownTimeout)
			defer cancel()
			err = c.server.Shutdown(ctx)
		}
		logger.Info("web channel stopped")
	})
	return err
}

func (c *WebChannel) Send(ctx context.Context, resp *Response) error {
	c.mu.RLock()
	s, ok := c.sessions[resp.SessionID]
	c.mu.RUnlock()
	if !ok {
		logger.Debug("web session gone, dropping response", "session", resp.SessionID)
		return nil
	}

	var frame serverFrame
	switch resp.Kind {
	case ResponseLoading:
		loading := resp.Loading
		frame = serverFrame{Type: "loading", Loading: &loading}
	case ResponseNotice:
		frame = serverFrame{Type: "notice", Text: resp.Text}
	default:
		frame = serverFrame{
			Type:   "message",
			Role:   resp.Block.Role,
			HTML:   resp.Block.Body,
			Scroll: resp.Block.Scroll.String(),
		}
	}
	return s.write(ctx, frame)
}

func (c *WebChannel) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.mu.RLock()
	n := len(c.sessions)
	c.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health.Collect(health.Options{
		Sessions:  n,
		Terminal:  c.cfg.Terminal,
		StartedAt: c.startedAt,
	}))
}

func (c *WebChannel) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: c.cfg.AllowedOrigins})
	if err != nil {
		logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(webReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &webSession{id: uuid.NewString(), conn: conn, limiter: c.newLimiter()}
	channelID := "web:" + s.id

	var buf terminal.Buffer
	if c.cfg.Terminal {
		shell, err := terminal.StartShell(ctx, terminal.ShellOptions{
			Path:         c.cfg.Shell,
			MaxLines:     c.cfg.MaxLines,
			MaxLineWidth: c.cfg.MaxLineWidth,
			Output: func(p []byte) {
				_ = s.write(ctx, serverFrame{Type: "term-output", Data: base64.StdEncoding.EncodeToString(p)})
			},
		})
		if err != nil {
			logger.Warn("shell unavailable, continuing without terminal", "session", s.id, "err", err)
		} else {
			s.shell = shell
			buf = shell.Buffer()
			go func() {
				select {
				case <-shell.Done():
					_ = s.write(ctx, serverFrame{Type: "notice", Text: "Terminal session ended."})
				case <-ctx.Done():
				}
			}()
		}
	}

	c.mu.Lock()
	c.sessions[s.id] = s
	c.mu.Unlock()
	logger.Info("web session opened", "session", s.id, "remote", r.RemoteAddr, "terminal", s.shell != nil)

	defer func() {
		c.mu.Lock()
		delete(c.sessions, s.id)
		c.mu.Unlock()
		if s.shell != nil {
			s.shell.Close()
		}
		c.emit(ctx, &Message{ID: c.nextID(), ChannelID: channelID, SessionID: s.id, Kind: KindClose})
		conn.Close(websocket.StatusNormalClosure, "")
		logger.Info("web session closed", "session", s.id)
	}()

	if err := s.write(ctx, serverFrame{Type: "hello", Session: s.id, Terminal: s.shell != nil}); err != nil {
		return
	}
	c.emit(ctx, &Message{ID: c.nextID(), ChannelID: channelID, SessionID: s.id, Kind: KindOpen, Terminal: buf})

	for {
		var f clientFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if websocket.CloseStatus(err) == -1 {
				logger.Debug("web session read error", "session", s.id, "err", err)
			}
			return
		}
		c.handleFrame(ctx, s, channelID, f)
	}
}

func (c *WebChannel) handleFrame(ctx context.Context, s *webSession, channelID string, f clientFrame) {
	switch f.Type {
	case "chat":
		if !s.limiter.Allow() {
			logger.Warn("web session rate limited", "session", s.id)
			_ = s.write(ctx, serverFrame{Type: "notice", Text: "Too many questions at once. Please wait a moment."})
			return
		}
		c.emit(ctx, &Message{ID: c.nextID(), ChannelID: channelID, SessionID: s.id, Kind: KindText, Text: f.Text})
	case "term-input":
		if s.shell != nil {
			_, _ = s.shell.Write([]byte(f.Data))
		}
	case "term-resize":
		if s.shell != nil {
			if err := s.shell.Resize(f.Rows, f.Cols); err != nil {
				logger.Debug("terminal resize rejected", "session", s.id, "err", err)
			}
		}
	default:
		logger.Debug("unknown web frame", "session", s.id, "type", f.Type)
	}
}

func (c *WebChannel) emit(ctx context.Context, msg *Message) {
	select {
	case c.messages <- msg:
	case <-c.done:
	case <-ctx.Done():
		// Session teardown must still reach the dispatcher.
		if msg.Kind == KindClose {
			select {
			case c.messages <- msg:
			case <-c.done:
			}
		}
	}
}

func (c *WebChannel) nextID() string {
	return fmt.Sprintf("web-%d", c.msgID.Add(1))
}

func (c *WebChannel) newLimiter() *rate.Limiter {
	if c.cfg.RatePerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.cfg.RatePerMinute)), burst)
}

func (s *webSession) write(ctx context.Context, frame serverFrame) error {
	ctx, cancel := context.WithTimeout(ctx, webWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, frame)
}
