package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
	openai "github.com/openai/openai-go/v3"
	oaioption "github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const openAIAPIBase = "https://api.openai.com/v1"

func init() {
	Register("openai", Registration{
		DisplayName: "OpenAI",
		APIBase:     openAIAPIBase,
		Constructor: func(opts Options) Provider { return newOpenAIProvider(opts) },
	})
}

// OpenAIProvider uses the Chat Completions API through the openai-go SDK.
type OpenAIProvider struct {
	apiKey          config.Key
	modelName       string
	temperature     float64
	maxOutputTokens int
	client          openai.Client
}

func newOpenAIProvider(opts Options) *OpenAIProvider {
	base := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if base == "" {
		base = openAIAPIBase
	}
	key, _ := opts.APIKey.Value()
	client := openai.NewClient(
		oaioption.WithAPIKey(key),
		oaioption.WithBaseURL(base),
		oaioption.WithMaxRetries(0),
		oaioption.WithHTTPClient(opts.httpClient()),
	)
	return &OpenAIProvider{
		apiKey:          opts.APIKey,
		modelName:       opts.Model,
		temperature:     opts.Temperature,
		maxOutputTokens: opts.MaxOutputTokens,
		client:          client,
	}
}

func toOpenAIMessages(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleModel {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
			continue
		}
		msgs = append(msgs, openai.UserMessage(t.Text))
	}
	return msgs
}

// Chat sends the conversation as a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req *Request) (*Response, error) {
	if _, err := checkRequest("openai", p.apiKey, req); err != nil {
		logger.Warn("openai request rejected", "provider", "openai", "err", err)
		return nil, err
	}

	start := time.Now()
	logger.Info(
		"openai request",
		"provider", "openai",
		"modelName", p.modelName,
		"turns", len(req.Contents),
		"inputChars", inputChars(req.Contents),
	)

	chatReq := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.modelName),
		Messages: toOpenAIMessages(req.Contents),
	}
	if p.maxOutputTokens > 0 {
		chatReq.MaxTokens = openai.Int(int64(p.maxOutputTokens))
	}
	if p.temperature != 0 {
		chatReq.Temperature = openai.Float(p.temperature)
	}

	chatResp, err := p.client.Chat.Completions.New(ctx, chatReq)
	if err != nil {
		logger.Error("openai request send error", "provider", "openai", "err", err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &TransportError{
				StatusCode: apiErr.StatusCode,
				StatusText: http.StatusText(apiErr.StatusCode),
				Body:       apiErr.RawJSON(),
			}
		}
		return nil, &TransportError{Err: err}
	}

	if len(chatResp.Choices) == 0 {
		logger.Error("openai no choices", "provider", "openai")
		return nil, &ParseError{Reason: "no choices in response"}
	}
	choice := chatResp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &ParseError{Reason: "choice has no text (finishReason: " + choice.FinishReason + ")"}
	}

	resp := &Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     int(chatResp.Usage.PromptTokens),
			CompletionTokens: int(chatResp.Usage.CompletionTokens),
			TotalTokens:      int(chatResp.Usage.TotalTokens),
		},
	}
	logger.Info(
		"openai response",
		"provider", "openai",
		"modelName", p.modelName,
		"finishReason", resp.FinishReason,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"totalTokens", resp.Usage.TotalTokens,
		"outputChars", len(resp.Text),
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
