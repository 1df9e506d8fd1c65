package cmd

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linanwx/labmate/channel"
	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/terminal"
)

type plainRenderer struct{}

func (plainRenderer) Render(role, text string) render.Block {
	return render.Block{Role: role, Text: text, Body: text}
}

type fakeChannel struct {
	messages chan *channel.Message

	mu        sync.Mutex
	responses []*channel.Response
	notify    chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		messages: make(chan *channel.Message, 8),
		notify:   make(chan struct{}, 64),
	}
}

func (c *fakeChannel) Name() string                      { return "fake" }
func (c *fakeChannel) Start(context.Context) error       { return nil }
func (c *fakeChannel) Stop() error                       { return nil }
func (c *fakeChannel) Messages() <-chan *channel.Message { return c.messages }
func (c *fakeChannel) Renderer() render.Renderer         { return plainRenderer{} }

func (c *fakeChannel) Send(_ context.Context, resp *channel.Response) error {
	c.mu.Lock()
	c.responses = append(c.responses, resp)
	c.mu.Unlock()
	c.notify <- struct{}{}
	return nil
}

// waitBlocks waits until n blocks were sent and returns them.
func (c *fakeChannel) waitBlocks(t *testing.T, n int) []render.Block {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		var blocks []render.Block
		for _, r := range c.responses {
			if r.Kind == channel.ResponseBlock {
				blocks = append(blocks, r.Block)
			}
		}
		c.mu.Unlock()
		if len(blocks) >= n {
			return blocks
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("got %d blocks, want %d", len(blocks), n)
		}
	}
}

type echoProvider struct {
	mu    sync.Mutex
	calls []*provider.Request
}

func (p *echoProvider) Chat(_ context.Context, req *provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	return &provider.Response{Text: "answer"}, nil
}

func testConfig(key string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SetAPIKey("gemini", key)
	return cfg
}

func startDispatcher(t *testing.T, p provider.Provider, cfg *config.Config) (*fakeChannel, *Dispatcher) {
	t.Helper()
	ch := newFakeChannel()
	manager := channel.NewManager()
	manager.Register(ch)
	d := NewDispatcher(manager, p, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ch, d
}

func TestDispatcherSessionFlow(t *testing.T) {
	p := &echoProvider{}
	ch, d := startDispatcher(t, p, testConfig("test-key"))

	ch.messages <- &channel.Message{SessionID: "s1", Kind: channel.KindOpen, Terminal: terminal.Lines{"$ whoami", "student"}}
	greeting := ch.waitBlocks(t, 1)
	if greeting[0].Role != provider.RoleModel || greeting[0].Text != config.DefaultGreeting {
		t.Fatalf("greeting = %+v", greeting[0])
	}

	ch.messages <- &channel.Message{SessionID: "s1", Kind: channel.KindText, Text: "  who am I?  "}
	blocks := ch.waitBlocks(t, 3)
	if blocks[1].Role != provider.RoleUser || blocks[1].Text != "who am I?" {
		t.Fatalf("user block = %+v", blocks[1])
	}
	if blocks[2].Role != provider.RoleModel || blocks[2].Text != "answer" {
		t.Fatalf("answer block = %+v", blocks[2])
	}

	p.mu.Lock()
	sent := p.calls[0].Contents[0].Text
	p.mu.Unlock()
	if !strings.Contains(sent, "$ whoami\nstudent") {
		t.Fatalf("prompt lacks terminal snapshot:\n%s", sent)
	}

	ch.messages <- &channel.Message{SessionID: "s1", Kind: channel.KindClose}
	deadline := time.Now().Add(2 * time.Second)
	for d.lookup("fake:s1") != nil {
		if time.Now().After(deadline) {
			t.Fatalf("session not removed on close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcherMissingKey(t *testing.T) {
	p := &echoProvider{}
	ch, _ := startDispatcher(t, p, testConfig(""))

	ch.messages <- &channel.Message{SessionID: "s2", Kind: channel.KindText, Text: "hello"}
	blocks := ch.waitBlocks(t, 2)
	if !strings.HasPrefix(blocks[1].Text, "Error: ") || !strings.Contains(blocks[1].Text, "API Key is missing") {
		t.Fatalf("error block = %+v", blocks[1])
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) != 0 {
		t.Fatalf("provider called without a key")
	}
}

func TestSessionKey(t *testing.T) {
	ch := newFakeChannel()
	if got := sessionKey(ch, &channel.Message{SessionID: "abc", ChannelID: "web:abc"}); got != "fake:abc" {
		t.Fatalf("sessionKey = %q", got)
	}
	if got := sessionKey(ch, &channel.Message{ChannelID: "cli:local"}); got != "fake:cli:local" {
		t.Fatalf("sessionKey without session = %q", got)
	}
}

// waitNotice waits for the first notice sent to the channel.
func (c *fakeChannel) waitNotice(t *testing.T) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		for _, r := range c.responses {
			if r.Kind == channel.ResponseNotice {
				c.mu.Unlock()
				return r.Text
			}
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("no notice sent")
		}
	}
}

type blockingProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Chat(ctx context.Context, _ *provider.Request) (*provider.Response, error) {
	p.entered <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &provider.Response{Text: "slow answer"}, nil
}

func TestDispatcherBusyQuestionGetsNotice(t *testing.T) {
	p := &blockingProvider{entered: make(chan struct{}, 2), release: make(chan struct{})}
	ch, _ := startDispatcher(t, p, testConfig("test-key"))

	ch.messages <- &channel.Message{SessionID: "s3", Kind: channel.KindOpen}
	ch.waitBlocks(t, 1)

	ch.messages <- &channel.Message{SessionID: "s3", Kind: channel.KindText, Text: "first"}
	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first question never reached the provider")
	}

	ch.messages <- &channel.Message{SessionID: "s3", Kind: channel.KindText, Text: "second"}
	if got := ch.waitNotice(t); got != busyNotice {
		t.Fatalf("notice = %q", got)
	}

	close(p.release)
	blocks := ch.waitBlocks(t, 3)
	if blocks[2].Text != "slow answer" {
		t.Fatalf("answer block = %+v", blocks[2])
	}
	for _, b := range blocks {
		if b.Text == "second" {
			t.Fatalf("busy question was shown as a user block")
		}
	}
	select {
	case <-p.entered:
		t.Fatalf("busy question reached the provider")
	default:
	}
}

func TestDispatchAfterStopDropsQuestion(t *testing.T) {
	p := &echoProvider{}
	ch := newFakeChannel()
	manager := channel.NewManager()
	manager.Register(ch)
	d := NewDispatcher(manager, p, testConfig("test-key"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	d.dispatch(ctx, ch, &channel.Message{SessionID: "late", Kind: channel.KindText, Text: "anyone there?"})
	d.dispatch(context.Background(), ch, &channel.Message{SessionID: "late", Kind: channel.KindText, Text: "still?"})
	d.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) != 0 {
		t.Fatalf("provider called after the dispatcher stopped")
	}
}
