package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/subosito/gotenv"
)

// ErrEnvFileMissing is returned when the .env file does not exist.
var ErrEnvFileMissing = errors.New(".env file not found")

// ReadDotEnvKey returns the value of name from a KEY=value file.
func ReadDotEnvKey(path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrEnvFileMissing, path)
		}
		return "", err
	}
	defer f.Close()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	value := strings.TrimSpace(env[name])
	if value == "" {
		return "", fmt.Errorf("%s not found in %s", name, path)
	}
	return value, nil
}

// ApplyDotEnv fills the active provider's key from a .env file when neither
// the config file nor the environment supplied one. A missing file is ignored.
func (c *Config) ApplyDotEnv(path string) error {
	if c.APIKey().Present() {
		return nil
	}
	name := EnvKeyName(c.Assistant.Provider)
	if name == "" {
		return nil
	}
	value, err := ReadDotEnvKey(path, name)
	if errors.Is(err, ErrEnvFileMissing) {
		return nil
	}
	if err != nil {
		return err
	}
	c.SetAPIKey(c.Assistant.Provider, value)
	return nil
}
