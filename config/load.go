package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// providerEnv maps provider names to their key and base URL variables.
var providerEnv = map[string][2]string{
	"gemini":    {"GEMINI_API_KEY", "GEMINI_API_BASE"},
	"openai":    {"OPENAI_API_KEY", "OPENAI_API_BASE"},
	"anthropic": {"ANTHROPIC_API_KEY", "ANTHROPIC_API_BASE"},
}

// EnvKeyName returns the environment variable holding the provider's key.
func EnvKeyName(provider string) string {
	return providerEnv[strings.ToLower(strings.TrimSpace(provider))][0]
}

// ConfigDir returns the directory holding config.yaml and logs.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if env := strings.TrimSpace(os.Getenv("LABMATE_HOME")); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".labmate"), nil
}

// ConfigPath returns the full path of config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads config.yaml, applies defaults and environment overrides.
// A missing file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to config.yaml with owner-only permissions.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile is Save for an explicit path.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyEnv() {
	for name, vars := range providerEnv {
		if key := strings.TrimSpace(os.Getenv(vars[0])); key != "" {
			c.ensureProvider(name).APIKey = key
		}
		if base := strings.TrimSpace(os.Getenv(vars[1])); base != "" {
			c.ensureProvider(name).APIBase = base
		}
	}
}
