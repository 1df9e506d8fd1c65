package cmd

import (
	"context"
	"errors"
	"sync"

	"github.com/linanwx/labmate/channel"
	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/conversation"
	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/widget"
)

const busyNotice = "Still answering your previous question. Please wait for it to finish."

// Dispatcher routes channel messages to per-session widgets. It is the
// bridge between the channel layer (pure I/O) and the widgets that own the
// conversations.
type Dispatcher struct {
	channels *channel.Manager
	provider provider.Provider
	cfg      *config.Config

	mu      sync.Mutex
	widgets map[string]*widget.Widget
	closed  bool // set once Run stops accepting questions
	wg      sync.WaitGroup
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(
	channels *channel.Manager,
	p provider.Provider,
	cfg *config.Config,
) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		provider: p,
		cfg:      cfg,
		widgets:  make(map[string]*widget.Widget),
	}
}

// Run starts a goroutine for each channel that reads messages and dispatches
// them to widgets. Blocks until ctx is cancelled and pending answers finished.
func (d *Dispatcher) Run(ctx context.Context) {
	d.channels.Each(func(ch channel.Channel) {
		go d.processChannel(ctx, ch)
	})
	<-ctx.Done()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) processChannel(ctx context.Context, ch channel.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			d.dispatch(ctx, ch, msg)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ch channel.Channel, msg *channel.Message) {
	if msg == nil {
		return
	}
	key := sessionKey(ch, msg)
	logger.Debug("dispatching message",
		"channel", ch.Name(),
		"channelID", msg.ChannelID,
		"session", key,
		"kind", msg.Kind,
		"text", truncate(msg.Text, 50),
	)

	switch msg.Kind {
	case channel.KindOpen:
		w := d.open(ch, key, msg)
		w.Greet(ctx)

	case channel.KindClose:
		d.mu.Lock()
		delete(d.widgets, key)
		d.mu.Unlock()
		logger.Debug("session closed", "session", key)

	default:
		w := d.lookup(key)
		if w == nil {
			// Text before open: start a session without terminal context.
			w = d.open(ch, key, msg)
		}
		if !d.track(ctx) {
			logger.Debug("dispatcher stopped, dropping question", "session", key)
			return
		}
		go func() {
			defer d.wg.Done()
			if err := w.Submit(ctx, msg.Text); errors.Is(err, widget.ErrBusy) {
				logger.Debug("busy notice sent", "session", key)
				view := &channelView{ch: ch, sessionID: msg.SessionID}
				view.send(ctx, &channel.Response{
					SessionID: msg.SessionID,
					Kind:      channel.ResponseNotice,
					Text:      busyNotice,
				})
			}
		}()
	}
}

// track registers a pending answer unless Run already stopped waiting for them.
func (d *Dispatcher) track(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || ctx.Err() != nil {
		return false
	}
	d.wg.Add(1)
	return true
}

// open creates the widget of a session, replacing any previous one.
func (d *Dispatcher) open(ch channel.Channel, key string, msg *channel.Message) *widget.Widget {
	w := widget.New(widget.Options{
		ID:           key,
		Provider:     d.provider,
		ProviderName: d.cfg.Assistant.Provider,
		Key:          d.cfg.APIKey(),
		Terminal:     msg.Terminal,
		Renderer:     ch.Renderer(),
		View:         &channelView{ch: ch, sessionID: msg.SessionID},
		Lessons:      d.cfg.Assistant.Lessons,
		Greeting:     d.cfg.Assistant.Greeting,
		Policy: conversation.Policy{
			MaxTurns:    d.cfg.Assistant.MaxTurns,
			TokenBudget: d.cfg.Assistant.TokenBudget,
		},
	})

	d.mu.Lock()
	d.widgets[key] = w
	d.mu.Unlock()
	logger.Info("session opened", "session", key, "terminal", msg.Terminal != nil)
	return w
}

func (d *Dispatcher) lookup(key string) *widget.Widget {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.widgets[key]
}

// sessionKey determines the widget a message belongs to.
func sessionKey(ch channel.Channel, msg *channel.Message) string {
	id := msg.SessionID
	if id == "" {
		id = msg.ChannelID
	}
	return ch.Name() + ":" + id
}

// channelView shows widget output on the session it came from.
type channelView struct {
	ch        channel.Channel
	sessionID string
}

func (v *channelView) Show(ctx context.Context, b render.Block) {
	v.send(ctx, &channel.Response{SessionID: v.sessionID, Kind: channel.ResponseBlock, Block: b})
}

func (v *channelView) SetLoading(ctx context.Context, loading bool) {
	v.send(ctx, &channel.Response{SessionID: v.sessionID, Kind: channel.ResponseLoading, Loading: loading})
}

func (v *channelView) send(ctx context.Context, resp *channel.Response) {
	if err := v.ch.Send(ctx, resp); err != nil {
		logger.Warn("failed to deliver response", "channel", v.ch.Name(), "session", v.sessionID, "err", err)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
