// Package cmd implements the labmate command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
	"github.com/spf13/cobra"
)

var (
	configDir string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "labmate",
	Short: "AI teaching assistant for a browser-based cybersecurity lab",
	Long: `labmate answers questions about what is on a student's terminal.

Every question is sent to the language model together with a snapshot of the
terminal scroll-back, a lesson reference and the earlier conversation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("config-dir") {
			return nil
		}
		config.SetConfigDir(configDir)
		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default ~/.labmate, or $LABMATE_HOME)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Read the API key from this .env file when none is configured")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogging (re)initializes the logger from the current config directory.
func initLogging() error {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	dir, _ := config.ConfigDir()
	if err := logger.Init(cfg.BuildLoggerConfig(), dir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	return nil
}

// loadConfig loads config.yaml and fills a missing key from the .env file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyDotEnv(envFile); err != nil {
		logger.Warn("ignoring .env file", "path", envFile, "err", err)
	}
	return cfg, nil
}
