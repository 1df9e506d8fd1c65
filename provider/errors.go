package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/linanwx/labmate/config"
)

// ConfigError reports a missing or placeholder API key. No request was sent.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string { return e.Reason }

// MissingKey returns the ConfigError reported when name has no usable key.
func MissingKey(name string) *ConfigError {
	env := config.EnvKeyName(name)
	if env == "" {
		env = "the provider API key"
	}
	return &ConfigError{
		Provider: name,
		Reason:   fmt.Sprintf("%s API Key is missing. Set %s or run 'labmate onboard'", DisplayName(name), env),
	}
}

// TransportError reports a failed HTTP exchange: either a non-2xx status or a
// network failure (StatusCode == 0, Err set).
type TransportError struct {
	StatusCode int
	StatusText string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API Request failed: %d - %s \nDetails: %s", e.StatusCode, e.StatusText, e.Body)
	}
	if e.Err != nil {
		return "API Request failed: " + e.Err.Error()
	}
	return "API Request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a 2xx response without a usable candidate.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "malformed API response: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed API response: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// statusText returns the reason phrase of resp, e.g. "Service Unavailable".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
