package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com"

func init() {
	Register("gemini", Registration{
		DisplayName: "Gemini",
		APIBase:     geminiAPIBase,
		Constructor: func(opts Options) Provider { return newGeminiProvider(opts) },
	})
}

// GeminiProvider talks to the generateContent REST endpoint.
type GeminiProvider struct {
	apiKey          config.Key
	baseURL         string
	modelName       string
	temperature     float64
	maxOutputTokens int
	httpClient      *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

func newGeminiProvider(opts Options) *GeminiProvider {
	base := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if base == "" {
		base = geminiAPIBase
	}
	return &GeminiProvider{
		apiKey:          opts.APIKey,
		baseURL:         base,
		modelName:       opts.Model,
		temperature:     opts.Temperature,
		maxOutputTokens: opts.MaxOutputTokens,
		httpClient:      opts.httpClient(),
	}
}

func (p *GeminiProvider) endpoint(key string) string {
	return p.baseURL + "/v1beta/models/" + url.PathEscape(p.modelName) + ":generateContent?key=" + url.QueryEscape(key)
}

func (p *GeminiProvider) buildRequestBody(turns []Turn) ([]byte, error) {
	contents := make([]geminiContent, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, geminiContent{Role: t.Role, Parts: []geminiPart{{Text: t.Text}}})
	}
	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return nil, err
	}
	if p.temperature != 0 {
		if body, err = sjson.SetBytes(body, "generationConfig.temperature", p.temperature); err != nil {
			return nil, err
		}
	}
	if p.maxOutputTokens > 0 {
		if body, err = sjson.SetBytes(body, "generationConfig.maxOutputTokens", p.maxOutputTokens); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Chat sends the conversation to Gemini and returns the first candidate's text.
func (p *GeminiProvider) Chat(ctx context.Context, req *Request) (*Response, error) {
	key, err := checkRequest("gemini", p.apiKey, req)
	if err != nil {
		logger.Warn("gemini request rejected", "provider", "gemini", "err", err)
		return nil, err
	}

	start := time.Now()
	logger.Info(
		"gemini request",
		"provider", "gemini",
		"modelName", p.modelName,
		"turns", len(req.Contents),
		"inputChars", inputChars(req.Contents),
	)

	body, err := p.buildRequestBody(req.Contents)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(key), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", redactKey(err, key))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		err = redactKey(err, key)
		logger.Error("gemini request send error", "provider", "gemini", "err", err)
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		logger.Error("gemini response read error", "provider", "gemini", "err", err)
		return nil, &TransportError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		logger.Error("gemini api error", "provider", "gemini", "status", httpResp.StatusCode, "body", string(respBody))
		return nil, &TransportError{
			StatusCode: httpResp.StatusCode,
			StatusText: statusText(httpResp),
			Body:       string(respBody),
		}
	}

	resp, err := parseGeminiResponse(respBody)
	if err != nil {
		logger.Error("gemini response parse error", "provider", "gemini", "err", err)
		return nil, err
	}

	logger.Info(
		"gemini response",
		"provider", "gemini",
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

// parseGeminiResponse joins the text parts of the first candidate.
func parseGeminiResponse(body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{Reason: "response is not valid JSON"}
	}
	root := gjson.ParseBytes(body)

	candidates := root.Get("candidates").Array()
	if len(candidates) == 0 {
		reason := "no candidates in response"
		if block := root.Get("promptFeedback.blockReason"); block.Exists() {
			reason += " (blocked: " + block.String() + ")"
		}
		return nil, &ParseError{Reason: reason}
	}

	first := candidates[0]
	parts := first.Get("content.parts").Array()
	if len(parts) == 0 {
		reason := "candidate has no content parts"
		if finish := first.Get("finishReason"); finish.Exists() {
			reason += " (finishReason: " + finish.String() + ")"
		}
		return nil, &ParseError{Reason: reason}
	}

	var sb strings.Builder
	found := false
	for _, part := range parts {
		if text := part.Get("text"); text.Exists() {
			sb.WriteString(text.String())
			found = true
		}
	}
	if !found {
		return nil, &ParseError{Reason: "candidate has no text part"}
	}
	if strings.TrimSpace(sb.String()) == "" {
		reason := "candidate has no text"
		if finish := first.Get("finishReason"); finish.Exists() {
			reason += " (finishReason: " + finish.String() + ")"
		}
		return nil, &ParseError{Reason: reason}
	}

	usage := root.Get("usageMetadata")
	return &Response{
		Text:         sb.String(),
		FinishReason: first.Get("finishReason").String(),
		Usage: Usage{
			PromptTokens:     int(usage.Get("promptTokenCount").Int()),
			CompletionTokens: int(usage.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(usage.Get("totalTokenCount").Int()),
		},
	}, nil
}

// redactKey removes the API key from URLs embedded in net/http errors.
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, url.QueryEscape(key), "REDACTED")
	}
	return err
}
