package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/linanwx/labmate/config"
)

func TestOpenAIChat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "use `ls -la`"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9},
		})
	}))
	defer server.Close()

	p := newOpenAIProvider(Options{APIKey: config.KeyOf("k"), APIBase: server.URL, Model: "gpt-test"})
	resp, err := p.Chat(context.Background(), &Request{Contents: []Turn{
		UserTurn("q1"), ModelTurn("a1"), UserTurn("q2"),
	}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text != "use `ls -la`" || resp.Usage.TotalTokens != 9 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	if role := msgs[1].(map[string]any)["role"]; role != "assistant" {
		t.Fatalf("model turn should map to assistant, got %v", role)
	}
}

func TestOpenAIStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer server.Close()

	p := newOpenAIProvider(Options{APIKey: config.KeyOf("k"), APIBase: server.URL, Model: "gpt-test"})
	_, err := p.Chat(context.Background(), &Request{Contents: []Turn{UserTurn("hi")}})
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if tErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("StatusCode = %d", tErr.StatusCode)
	}
	if !strings.HasPrefix(err.Error(), "API Request failed: 429 - Too Many Requests") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAnthropicChat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"content":     []map[string]any{{"type": "text", "text": "nmap scans ports"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 7, "output_tokens": 3},
		})
	}))
	defer server.Close()

	p := newAnthropicProvider(Options{APIKey: config.KeyOf("k"), APIBase: server.URL, Model: "claude-test"})
	resp, err := p.Chat(context.Background(), &Request{Contents: []Turn{UserTurn("what is nmap?")}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text != "nmap scans ports" || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if captured["max_tokens"] != float64(anthropicDefaultMaxTokens) {
		t.Fatalf("max_tokens = %v", captured["max_tokens"])
	}
}

func TestSDKProvidersMissingKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	for _, name := range []string{"openai", "anthropic"} {
		p, err := New(name, Options{APIKey: config.NoKey(), APIBase: server.URL})
		if err != nil {
			t.Fatalf("New(%s) error = %v", name, err)
		}
		_, err = p.Chat(context.Background(), &Request{Contents: []Turn{UserTurn("hi")}})
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: error = %v, want ConfigError", name, err)
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}
