package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
)

const (
	anthropicAPIBase          = "https://api.anthropic.com"
	anthropicDefaultMaxTokens = 1024
)

func init() {
	Register("anthropic", Registration{
		DisplayName: "Anthropic",
		APIBase:     anthropicAPIBase,
		Constructor: func(opts Options) Provider { return newAnthropicProvider(opts) },
	})
}

// AnthropicProvider uses the Messages API.
type AnthropicProvider struct {
	apiKey      config.Key
	modelName   string
	temperature float64
	maxTokens   int64
	client      *anthropic.Client
}

func newAnthropicProvider(opts Options) *AnthropicProvider {
	key, _ := opts.APIKey.Value()
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
		option.WithHTTPClient(opts.httpClient()),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	client := anthropic.NewClient(reqOpts...)

	maxTokens := int64(opts.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	return &AnthropicProvider{
		apiKey:      opts.APIKey,
		modelName:   opts.Model,
		temperature: opts.Temperature,
		maxTokens:   maxTokens,
		client:      &client,
	}
}

func toAnthropicMessages(turns []Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
	}
	return messages
}

func anthropicText(blocks []anthropic.ContentBlockUnion) string {
	var sb strings.Builder
	for _, block := range blocks {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(v.Text)
		}
	}
	return sb.String()
}

// Chat sends the conversation to the Messages API.
func (p *AnthropicProvider) Chat(ctx context.Context, req *Request) (*Response, error) {
	if _, err := checkRequest("anthropic", p.apiKey, req); err != nil {
		logger.Warn("anthropic request rejected", "provider", "anthropic", "err", err)
		return nil, err
	}

	start := time.Now()
	logger.Info(
		"anthropic request",
		"provider", "anthropic",
		"modelName", p.modelName,
		"turns", len(req.Contents),
		"inputChars", inputChars(req.Contents),
	)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelName),
		MaxTokens: p.maxTokens,
		Messages:  toAnthropicMessages(req.Contents),
	}
	if p.temperature != 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("anthropic request send error", "provider", "anthropic", "err", err)
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &TransportError{
				StatusCode: apiErr.StatusCode,
				StatusText: http.StatusText(apiErr.StatusCode),
				Body:       apiErr.RawJSON(),
			}
		}
		return nil, &TransportError{Err: err}
	}

	text := anthropicText(msg.Content)
	if strings.TrimSpace(text) == "" {
		logger.Error("anthropic empty content", "provider", "anthropic", "stopReason", string(msg.StopReason))
		return nil, &ParseError{Reason: "message has no text content (stopReason: " + string(msg.StopReason) + ")"}
	}

	resp := &Response{
		Text:         text,
		FinishReason: string(msg.StopReason),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	logger.Info(
		"anthropic response",
		"provider", "anthropic",
		"modelName", p.modelName,
		"finishReason", resp.FinishReason,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"outputChars", len(resp.Text),
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
