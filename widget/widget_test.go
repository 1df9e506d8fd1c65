package widget

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/terminal"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []*provider.Request
	answer   string
	err      error
	panicMsg string
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeProvider) Chat(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Text: f.answer}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordingView struct {
	mu      sync.Mutex
	blocks  []render.Block
	loading []bool
}

func (v *recordingView) Show(_ context.Context, b render.Block) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blocks = append(v.blocks, b)
}

func (v *recordingView) SetLoading(_ context.Context, on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = append(v.loading, on)
}

func (v *recordingView) last() render.Block {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.blocks[len(v.blocks)-1]
}

// plainRenderer keeps tests independent of HTML output.
type plainRenderer struct{}

func (plainRenderer) Render(role, text string) render.Block {
	return render.Block{Role: role, Text: text, Body: text}
}

func newTestWidget(p provider.Provider, key string, buf terminal.Buffer) (*Widget, *recordingView) {
	view := &recordingView{}
	w := New(Options{
		ID:       "test",
		Provider: p,
		Key:      config.KeyOf(key),
		Terminal: buf,
		Renderer: plainRenderer{},
		View:     view,
	})
	return w, view
}

func TestSubmitSuccess(t *testing.T) {
	p := &fakeProvider{answer: "It lists files."}
	w, view := newTestWidget(p, "k", terminal.Lines{"$ ls", "file.txt"})

	if err := w.Submit(context.Background(), "  what did ls do?  "); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(view.blocks) != 2 {
		t.Fatalf("blocks = %+v", view.blocks)
	}
	if view.blocks[0].Role != provider.RoleUser || view.blocks[0].Text != "what did ls do?" {
		t.Fatalf("user block shows %q, want raw trimmed question", view.blocks[0].Text)
	}
	if view.blocks[1].Role != provider.RoleModel || view.blocks[1].Text != "It lists files." {
		t.Fatalf("answer block = %+v", view.blocks[1])
	}

	req := p.requests[0]
	if len(req.Contents) != 1 {
		t.Fatalf("first request should carry one turn, got %d", len(req.Contents))
	}
	sent := req.Contents[0].Text
	if !strings.Contains(sent, "```\n$ ls\nfile.txt\n```") || !strings.HasSuffix(sent, "what did ls do?") {
		t.Fatalf("composed prompt = %q", sent)
	}

	hist := w.History()
	if len(hist) != 2 || hist[0].Text != sent || hist[1].Text != "It lists files." {
		t.Fatalf("history = %+v", hist)
	}
	if got := view.loading; len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("loading transitions = %v, want [true false]", got)
	}
}

func TestHistoryIsSentAndSnapshotRefreshed(t *testing.T) {
	p := &fakeProvider{answer: "ok"}
	sb := terminal.NewScrollback(100, 100)
	w, _ := newTestWidget(p, "k", sb)

	sb.Write([]byte("$ whoami\nstudent\n"))
	w.Submit(context.Background(), "first")
	sb.Write([]byte("$ id\nuid=1000\n"))
	w.Submit(context.Background(), "second")

	second := p.requests[1]
	if len(second.Contents) != 3 {
		t.Fatalf("second request turns = %d, want 3", len(second.Contents))
	}
	if second.Contents[0].Role != provider.RoleUser || second.Contents[1].Role != provider.RoleModel {
		t.Fatalf("history order wrong: %+v", second.Contents)
	}
	if !strings.Contains(second.Contents[2].Text, "uid=1000") {
		t.Fatalf("snapshot not recaptured: %q", second.Contents[2].Text)
	}
	if strings.Contains(second.Contents[0].Text, "uid=1000") {
		t.Fatalf("past turns must not change")
	}
}

func TestBlankInputIgnored(t *testing.T) {
	p := &fakeProvider{answer: "x"}
	w, view := newTestWidget(p, "k", nil)
	if err := w.Submit(context.Background(), "   \n\t"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(view.blocks) != 0 || p.calls() != 0 {
		t.Fatalf("blank input should do nothing")
	}
}

func TestMissingKeyNoNetwork(t *testing.T) {
	for _, key := range []string{"", "YOUR_GEMINI_API_KEY_HERE"} {
		p := &fakeProvider{answer: "x"}
		w, view := newTestWidget(p, key, nil)

		err := w.Submit(context.Background(), "hello")
		var cfgErr *provider.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("key %q: error = %v, want ConfigError", key, err)
		}
		if p.calls() != 0 {
			t.Fatalf("key %q: provider called", key)
		}
		if len(view.blocks) != 2 || view.blocks[0].Text != "hello" {
			t.Fatalf("key %q: blocks = %+v", key, view.blocks)
		}
		if got := view.last().Text; !strings.HasPrefix(got, "Error: ") || !strings.Contains(got, "API Key is missing") {
			t.Fatalf("key %q: error block = %q", key, got)
		}
		if len(w.History()) != 0 {
			t.Fatalf("key %q: history changed", key)
		}
	}
}

func TestTransportErrorShownHistoryUnchanged(t *testing.T) {
	p := &fakeProvider{answer: "first answer"}
	w, view := newTestWidget(p, "k", nil)
	w.Submit(context.Background(), "q1")

	p.err = &provider.TransportError{StatusCode: 503, StatusText: "Service Unavailable", Body: "busy"}
	err := w.Submit(context.Background(), "q2")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := view.last(); got.Role != provider.RoleModel || !strings.HasPrefix(got.Text, "Error: API Request failed: 503") {
		t.Fatalf("error block = %+v", got)
	}
	if len(w.History()) != 2 {
		t.Fatalf("history len = %d, want 2", len(w.History()))
	}
	if n := len(view.loading); n != 4 || view.loading[3] {
		t.Fatalf("loading must be hidden after failure: %v", view.loading)
	}
}

func TestParseErrorShown(t *testing.T) {
	p := &fakeProvider{err: &provider.ParseError{Reason: "no candidates in response"}}
	w, view := newTestWidget(p, "k", nil)
	w.Submit(context.Background(), "q")
	if got := view.last().Text; got != "Error: malformed API response: no candidates in response" {
		t.Fatalf("error block = %q", got)
	}
	if len(w.History()) != 0 {
		t.Fatalf("history must stay empty")
	}
}

func TestEmptyGeminiCandidateLeavesHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"MAX_TOKENS"}]}`)
	}))
	defer srv.Close()
	p, err := provider.New("gemini", provider.Options{APIKey: config.KeyOf("k"), APIBase: srv.URL, Model: "gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	w, view := newTestWidget(p, "k", nil)

	err = w.Submit(context.Background(), "q")
	var pErr *provider.ParseError
	if !errors.As(err, &pErr) {
		t.Fatalf("Submit() error = %v, want ParseError", err)
	}
	if got := view.last(); got.Role != provider.RoleModel || !strings.HasPrefix(got.Text, "Error: malformed API response") {
		t.Fatalf("error block = %+v", got)
	}
	if len(w.History()) != 0 {
		t.Fatalf("empty answer must not be recorded: %+v", w.History())
	}
}

func TestPanicRecovered(t *testing.T) {
	p := &fakeProvider{panicMsg: "boom"}
	w, view := newTestWidget(p, "k", nil)
	if err := w.Submit(context.Background(), "q"); err == nil {
		t.Fatalf("expected error from panic")
	}
	if got := view.last().Text; !strings.HasPrefix(got, "Error: ") || !strings.Contains(got, "boom") {
		t.Fatalf("error block = %q", got)
	}
	if w.Busy() {
		t.Fatalf("widget should be idle after panic")
	}
	if l := view.loading; len(l) != 2 || l[1] {
		t.Fatalf("loading = %v", l)
	}
}

func TestSecondSubmitWhilePendingIsBusy(t *testing.T) {
	p := &fakeProvider{answer: "done", block: make(chan struct{}), entered: make(chan struct{}, 1)}
	w, view := newTestWidget(p, "k", nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Submit(context.Background(), "slow question") }()

	select {
	case <-p.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("provider not called")
	}
	if !w.Busy() {
		t.Fatalf("Busy() should be true while sending")
	}
	if err := w.Submit(context.Background(), "impatient"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Submit error = %v, want ErrBusy", err)
	}

	close(p.block)
	if err := <-errc; err != nil {
		t.Fatalf("first Submit error = %v", err)
	}
	if p.calls() != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls())
	}
	for _, b := range view.blocks {
		if b.Text == "impatient" {
			t.Fatalf("rejected question must not be rendered")
		}
	}
	if len(w.History()) != 2 {
		t.Fatalf("history len = %d, want 2", len(w.History()))
	}
}

func TestGreetOnce(t *testing.T) {
	p := &fakeProvider{answer: "x"}
	w, view := newTestWidget(p, "k", nil)
	w.Greet(context.Background())
	w.Greet(context.Background())

	if len(view.blocks) != 1 || view.blocks[0].Text != config.DefaultGreeting || view.blocks[0].Role != provider.RoleModel {
		t.Fatalf("blocks = %+v", view.blocks)
	}
	if len(w.History()) != 0 || p.calls() != 0 {
		t.Fatalf("greeting must not be sent or stored")
	}
}

func TestHistoryLengthTracksSuccesses(t *testing.T) {
	p := &fakeProvider{answer: "a"}
	w, _ := newTestWidget(p, "k", nil)
	successes := 0
	for i := 0; i < 6; i++ {
		if i%3 == 2 {
			p.err = errors.New("network down")
		} else {
			p.err = nil
		}
		if w.Submit(context.Background(), "q") == nil {
			successes++
		}
	}
	if got := len(w.History()); got != 2*successes {
		t.Fatalf("history len = %d, want %d", got, 2*successes)
	}
}
