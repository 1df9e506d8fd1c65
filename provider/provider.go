// Package provider defines the LLM provider interface and common types.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/linanwx/labmate/config"
)

// Roles used in conversation turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Provider is the interface for LLM providers.
type Provider interface {
	// Chat sends the whole conversation and returns the model's answer.
	Chat(ctx context.Context, req *Request) (*Response, error)
}

// Turn is one message exchanged with the model.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// UserTurn creates a user turn.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// ModelTurn creates a model turn.
func ModelTurn(text string) Turn { return Turn{Role: RoleModel, Text: text} }

// Request carries prior history followed by the new user turn.
type Request struct {
	Contents []Turn
}

// Last returns the newest turn of the request.
func (r *Request) Last() (Turn, bool) {
	if r == nil || len(r.Contents) == 0 {
		return Turn{}, false
	}
	return r.Contents[len(r.Contents)-1], true
}

// Response is the model's answer.
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrEmptyRequest is returned when there is no user text to send.
var ErrEmptyRequest = errors.New("request has no user text")

// Options configures a provider instance.
type Options struct {
	APIKey          config.Key
	APIBase         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	HTTPClient      *http.Client // optional; overrides Timeout
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: o.Timeout}
}

// Constructor builds a provider from options.
type Constructor func(opts Options) Provider

// Registration defines metadata and constructor for a provider.
type Registration struct {
	DisplayName string
	APIBase     string
	Constructor Constructor
}

var registry = map[string]Registration{}

// Register registers a provider under name.
func Register(name string, reg Registration) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || reg.Constructor == nil {
		return
	}
	registry[name] = reg
}

// New builds the named provider.
func New(name string, opts Options) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	reg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (supported: %s)", name, strings.Join(Supported(), ", "))
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = config.DefaultModel(name)
	}
	return reg.Constructor(opts), nil
}

// Supported returns all registered provider names in sorted order.
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayName returns the human-readable provider name.
func DisplayName(name string) string {
	if reg, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok && reg.DisplayName != "" {
		return reg.DisplayName
	}
	return name
}

// FromConfig builds the active provider described by cfg.
func FromConfig(cfg *config.Config) (Provider, error) {
	return New(cfg.Assistant.Provider, Options{
		APIKey:          cfg.APIKey(),
		APIBase:         cfg.APIBase(),
		Model:           cfg.Assistant.Model,
		Temperature:     cfg.Assistant.Temperature,
		MaxOutputTokens: cfg.Assistant.MaxOutputTokens,
		Timeout:         cfg.Timeout(),
	})
}

func inputChars(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += len(t.Role) + len(t.Text)
	}
	return total
}

// checkRequest validates the preconditions every provider shares.
func checkRequest(name string, key config.Key, req *Request) (string, error) {
	value, ok := key.Value()
	if !ok {
		return "", MissingKey(name)
	}
	last, ok := req.Last()
	if !ok || strings.TrimSpace(last.Text) == "" {
		return "", ErrEmptyRequest
	}
	return value, nil
}
