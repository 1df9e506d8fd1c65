// Package widget implements the chat assistant attached to a terminal.
//
// A Widget owns one conversation. Each Submit renders the user's question,
// captures a fresh terminal snapshot, sends the composed prompt with the
// prior history and renders either the answer or an "Error: ..." block.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/conversation"
	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/prompt"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/terminal"
)

// ErrBusy is returned by Submit while a previous question is still pending.
var ErrBusy = errors.New("a question is already being answered")

// View displays rendered blocks and the loading indicator.
type View interface {
	Show(ctx context.Context, b render.Block)
	SetLoading(ctx context.Context, loading bool)
}

// Options holds the collaborators of a Widget.
type Options struct {
	ID           string
	Provider     provider.Provider
	ProviderName string
	Key          config.Key
	Terminal     terminal.Buffer // nil when no terminal is attached
	Renderer     render.Renderer
	View         View
	Lessons      []string
	Greeting     string
	Policy       conversation.Policy
}

// Widget is one chat session.
type Widget struct {
	id           string
	provider     provider.Provider
	providerName string
	key          config.Key
	terminal     terminal.Buffer
	renderer     render.Renderer
	view         View
	composer     prompt.Composer
	greeting     string
	history      *conversation.History

	sending   atomic.Bool
	greetOnce sync.Once
}

// New creates a widget. Provider, Renderer and View are required.
func New(opts Options) *Widget {
	greeting := opts.Greeting
	if greeting == "" {
		greeting = config.DefaultGreeting
	}
	name := opts.ProviderName
	if name == "" {
		name = "gemini"
	}
	return &Widget{
		id:           opts.ID,
		provider:     opts.Provider,
		providerName: name,
		key:          opts.Key,
		terminal:     opts.Terminal,
		renderer:     opts.Renderer,
		view:         opts.View,
		composer:     prompt.Composer{Lessons: opts.Lessons},
		greeting:     greeting,
		history:      conversation.New(opts.Policy),
	}
}

// ID returns the session id given at construction.
func (w *Widget) ID() string { return w.id }

// Greet shows the greeting. Only the first call has an effect; the greeting
// is never sent to the model nor stored in history.
func (w *Widget) Greet(ctx context.Context) {
	w.greetOnce.Do(func() {
		w.view.Show(ctx, w.renderer.Render(provider.RoleModel, w.greeting))
	})
}

// Busy reports whether a question is pending.
func (w *Widget) Busy() bool { return w.sending.Load() }

// History returns a copy of the turns exchanged so far.
func (w *Widget) History() []provider.Turn { return w.history.Snapshot() }

// Submit handles one question. Blank input is ignored. Failures are shown
// to the user as an error block and also returned; history only grows when
// an answer was received.
func (w *Widget) Submit(ctx context.Context, raw string) error {
	question := strings.TrimSpace(raw)
	if question == "" {
		return nil
	}
	if !w.sending.CompareAndSwap(false, true) {
		logger.Warn("question rejected, request pending", "session", w.id)
		return ErrBusy
	}
	defer w.sending.Store(false)

	w.view.Show(ctx, w.renderer.Render(provider.RoleUser, question))

	if !w.key.Present() {
		err := provider.MissingKey(w.providerName)
		w.showError(ctx, err)
		return err
	}

	w.view.SetLoading(ctx, true)
	defer w.view.SetLoading(ctx, false)

	start := time.Now()
	composed, answer, err := w.ask(ctx, question)
	if err != nil {
		logger.Error("question failed", "session", w.id, "err", err, "latencyMs", time.Since(start).Milliseconds())
		w.showError(ctx, err)
		return err
	}

	w.history.AppendExchange(composed, answer)
	logger.Info(
		"question answered",
		"session", w.id,
		"questionChars", len(question),
		"answerChars", len(answer),
		"historyTurns", w.history.Len(),
		"latencyMs", time.Since(start).Milliseconds(),
	)
	w.view.Show(ctx, w.renderer.Render(provider.RoleModel, answer))
	return nil
}

// ask composes the prompt from a fresh snapshot and sends it with history.
func (w *Widget) ask(ctx context.Context, question string) (composed, answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while answering", "session", w.id, "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	snapshot := terminal.Snapshot(w.terminal)
	composed = w.composer.Compose(snapshot, question)
	contents := append(w.history.Snapshot(), provider.UserTurn(composed))

	resp, err := w.provider.Chat(ctx, &provider.Request{Contents: contents})
	if err != nil {
		return "", "", err
	}
	return composed, resp.Text, nil
}

func (w *Widget) showError(ctx context.Context, err error) {
	w.view.Show(ctx, w.renderer.Render(provider.RoleModel, "Error: "+err.Error()))
}
