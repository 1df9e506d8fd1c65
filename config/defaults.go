package config

const (
	defaultProvider        = "gemini"
	defaultModel           = "gemini-1.5-flash"
	defaultWebAddr         = "127.0.0.1:8080"
	defaultRatePerMinute   = 20
	defaultBurst           = 3
	defaultShell           = "/bin/bash"
	defaultMaxLines        = 1000
	defaultMaxLineWidth    = 512
	defaultLessonReference = "Unit 1: Basics of cybersecurity and Linux setup"

	// DefaultGreeting is rendered once when a session opens.
	DefaultGreeting = "### Hello! 👋\nI'm your **Cybersecurity AI Assistant**.\n\nAsk me anything about cybersecurity or this terminal!"
)

// defaultModels maps providers to the model used when none is configured.
var defaultModels = map[string]string{
	"gemini":    defaultModel,
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	c := &Config{
		Providers: ProvidersConfig{
			Gemini: &ProviderConfig{},
		},
	}
	c.applyDefaults()
	return c
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Format:  "text",
		Stdout:  false,
		File:    "logs/labmate.log",
	}
}

func (c *Config) applyDefaults() {
	if c.Assistant.Provider == "" {
		c.Assistant.Provider = defaultProvider
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = DefaultModel(c.Assistant.Provider)
	}
	if len(c.Assistant.Lessons) == 0 {
		c.Assistant.Lessons = []string{defaultLessonReference}
	}
	if c.Assistant.Greeting == "" {
		c.Assistant.Greeting = DefaultGreeting
	}

	if c.Web == nil {
		c.Web = &WebConfig{}
	}
	if c.Web.Addr == "" {
		c.Web.Addr = defaultWebAddr
	}
	// Negative rates are kept: they switch the limiter off.
	if c.Web.RatePerMinute == 0 {
		c.Web.RatePerMinute = defaultRatePerMinute
	}
	if c.Web.Burst <= 0 {
		c.Web.Burst = defaultBurst
	}

	if c.Terminal.Shell == "" {
		c.Terminal.Shell = defaultShell
	}
	if c.Terminal.MaxLines <= 0 {
		c.Terminal.MaxLines = defaultMaxLines
	}
	if c.Terminal.MaxLineWidth <= 0 {
		c.Terminal.MaxLineWidth = defaultMaxLineWidth
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if c.Logging.File == "" && !c.Logging.Stdout {
		c.Logging.File = def.File
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}
