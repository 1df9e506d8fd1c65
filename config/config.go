// Package config handles configuration loading and saving.
package config

import (
	"strings"
	"time"

	"github.com/linanwx/labmate/logger"
)

const (
	configFileName = "config.yaml"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Assistant AssistantConfig `json:"assistant" yaml:"assistant"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Web       *WebConfig      `json:"web,omitempty" yaml:"web,omitempty"`
	Terminal  TerminalConfig  `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// AssistantConfig controls how questions are composed and sent.
type AssistantConfig struct {
	Provider        string   `json:"provider" yaml:"provider"` // gemini, openai, anthropic
	Model           string   `json:"model" yaml:"model"`
	Temperature     float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty" yaml:"maxOutputTokens,omitempty"`
	RequestTimeout  int      `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"` // seconds, 0 = transport default
	MaxTurns        int      `json:"maxTurns,omitempty" yaml:"maxTurns,omitempty"`             // history cap, 0 = unbounded
	TokenBudget     int      `json:"tokenBudget,omitempty" yaml:"tokenBudget,omitempty"`       // cl100k tokens, 0 = unbounded
	Lessons         []string `json:"lessons,omitempty" yaml:"lessons,omitempty"`
	Greeting        string   `json:"greeting,omitempty" yaml:"greeting,omitempty"`
}

// ProvidersConfig contains provider API configurations.
type ProvidersConfig struct {
	Gemini    *ProviderConfig `json:"gemini,omitempty" yaml:"gemini,omitempty"`
	OpenAI    *ProviderConfig `json:"openai,omitempty" yaml:"openai,omitempty"`
	Anthropic *ProviderConfig `json:"anthropic,omitempty" yaml:"anthropic,omitempty"`
}

// ProviderConfig contains API credentials for a provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" yaml:"apiKey"`
	APIBase string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"` // optional custom base URL
}

// WebConfig contains the browser widget server configuration.
type WebConfig struct {
	Addr           string   `json:"addr,omitempty" yaml:"addr,omitempty"`
	RatePerMinute  int      `json:"ratePerMinute,omitempty" yaml:"ratePerMinute,omitempty"` // chat sends per connection; 0 = default, negative = unlimited
	Burst          int      `json:"burst,omitempty" yaml:"burst,omitempty"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// TerminalConfig describes where terminal snapshots come from.
type TerminalConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Shell        string `json:"shell,omitempty" yaml:"shell,omitempty"`
	MaxLines     int    `json:"maxLines,omitempty" yaml:"maxLines,omitempty"`
	MaxLineWidth int    `json:"maxLineWidth,omitempty" yaml:"maxLineWidth,omitempty"`
	Transcript   string `json:"transcript,omitempty" yaml:"transcript,omitempty"` // file recorded by script(1), CLI mode
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format  string `json:"format,omitempty" yaml:"format,omitempty"` // text, json
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Provider returns the credentials block for name, or nil.
func (c *Config) Provider(name string) *ProviderConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return c.Providers.Gemini
	case "openai":
		return c.Providers.OpenAI
	case "anthropic":
		return c.Providers.Anthropic
	}
	return nil
}

// ensureProvider returns the credentials block for name, creating it if needed.
func (c *Config) ensureProvider(name string) *ProviderConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		if c.Providers.Gemini == nil {
			c.Providers.Gemini = &ProviderConfig{}
		}
		return c.Providers.Gemini
	case "openai":
		if c.Providers.OpenAI == nil {
			c.Providers.OpenAI = &ProviderConfig{}
		}
		return c.Providers.OpenAI
	case "anthropic":
		if c.Providers.Anthropic == nil {
			c.Providers.Anthropic = &ProviderConfig{}
		}
		return c.Providers.Anthropic
	}
	return nil
}

// SetAPIKey stores key for the named provider.
func (c *Config) SetAPIKey(name, key string) {
	if p := c.ensureProvider(name); p != nil {
		p.APIKey = strings.TrimSpace(key)
	}
}

// APIKey returns the key of the active provider. The result is absent when
// nothing (or only a placeholder) is configured.
func (c *Config) APIKey() Key {
	if p := c.Provider(c.Assistant.Provider); p != nil {
		return KeyOf(p.APIKey)
	}
	return NoKey()
}

// APIBase returns the custom base URL of the active provider, if any.
func (c *Config) APIBase() string {
	if p := c.Provider(c.Assistant.Provider); p != nil {
		return strings.TrimSpace(p.APIBase)
	}
	return ""
}

// Timeout returns the per-request timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	if c.Assistant.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(c.Assistant.RequestTimeout) * time.Second
}

// TerminalEnabled reports whether the web channel should spawn a shell.
func (c *Config) TerminalEnabled() bool {
	return c.Terminal.Enabled == nil || *c.Terminal.Enabled
}

// WebAddr returns the listen address of the web channel.
func (c *Config) WebAddr() string {
	if c.Web != nil && strings.TrimSpace(c.Web.Addr) != "" {
		return strings.TrimSpace(c.Web.Addr)
	}
	return defaultWebAddr
}

// BuildLoggerConfig converts logging settings to the logger package form.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := c.Logging.Enabled == nil || *c.Logging.Enabled
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Format:  c.Logging.Format,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
	}
}
