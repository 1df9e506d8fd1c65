package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/linanwx/labmate/channel"
	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/terminal"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start labmate with its chat surfaces",
	Long: `Start labmate as a long-running service.

Supported channels:
  - web: Lab page with a terminal and the chat widget (http + websocket, default)
  - cli: Interactive command line reading a script(1) transcript

Examples:
  labmate serve              # Start the web lab page
  labmate serve --cli        # Chat locally about terminal.transcript
  labmate serve --all        # Start both`,
	RunE: runServe,
}

var (
	serveAll bool
	serveCLI bool
	serveWeb bool
)

func init() {
	serveCmd.Flags().BoolVar(&serveWeb, "web", true, "Enable the web lab page (default: true)")
	serveCmd.Flags().BoolVar(&serveCLI, "cli", false, "Enable the CLI channel")
	serveCmd.Flags().BoolVar(&serveAll, "all", false, "Enable all channels")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	model, err := provider.FromConfig(cfg)
	if err != nil {
		return err
	}
	if !cfg.APIKey().Present() {
		logger.Warn("no API key configured, questions will be answered with an error",
			"provider", cfg.Assistant.Provider, "env", config.EnvKeyName(cfg.Assistant.Provider))
	}

	finalServeCLI, finalServeWeb, err := resolveServeTargets(cmd)
	if err != nil {
		return err
	}

	manager := channel.NewManager()

	if finalServeWeb {
		manager.Register(channel.NewWebChannel(channel.WebConfig{
			Addr:           cfg.WebAddr(),
			RatePerMinute:  cfg.Web.RatePerMinute,
			Burst:          cfg.Web.Burst,
			AllowedOrigins: cfg.Web.AllowedOrigins,
			Terminal:       cfg.TerminalEnabled(),
			Shell:          cfg.Terminal.Shell,
			MaxLines:       cfg.Terminal.MaxLines,
			MaxLineWidth:   cfg.Terminal.MaxLineWidth,
		}))
		logger.Info("web channel enabled", "addr", cfg.WebAddr())
	}

	if finalServeCLI {
		manager.Register(channel.NewCLIChannel(channel.CLIConfig{
			Prompt:   "labmate> ",
			Terminal: transcriptBuffer(cfg, cfg.Terminal.Transcript),
		}))
		logger.Info("cli channel enabled", "transcript", cfg.Terminal.Transcript)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	logger.Info("labmate service started", "provider", cfg.Assistant.Provider, "model", cfg.Assistant.Model)
	if finalServeWeb && !finalServeCLI {
		fmt.Printf("labmate is running at http://%s. Press Ctrl+C to stop.\n", cfg.WebAddr())
	}

	// Dispatcher reads from channels and drives the widgets. Blocks until ctx done.
	dispatcher := NewDispatcher(manager, model, cfg)
	dispatcher.Run(ctx)

	if err := manager.StopAll(); err != nil {
		logger.Error("error stopping channels", "err", err)
	}

	logger.Info("labmate service stopped")
	return nil
}

// transcriptBuffer returns the script(1) transcript at path, or nil when no
// transcript is configured.
func transcriptBuffer(cfg *config.Config, path string) terminal.Buffer {
	if path == "" {
		return nil
	}
	return terminal.NewTranscript(path, cfg.Terminal.MaxLines, cfg.Terminal.MaxLineWidth)
}

func resolveServeTargets(cmd *cobra.Command) (finalServeCLI, finalServeWeb bool, err error) {
	if cmd == nil {
		return false, false, fmt.Errorf("serve command is nil")
	}
	if serveAll {
		return true, true, nil
	}

	flags := cmd.Flags()
	cliChanged := flags.Changed("cli")
	webChanged := flags.Changed("web")

	// No explicit channel flags -> default to web only.
	if !cliChanged && !webChanged {
		return false, true, nil
	}

	// --cli alone means CLI only; otherwise use the explicit switches.
	if cliChanged {
		finalServeCLI = serveCLI
	}
	if webChanged {
		finalServeWeb = serveWeb
	}

	if !finalServeCLI && !finalServeWeb {
		return false, false, fmt.Errorf("no channels enabled; use --web, --cli, or --all")
	}
	return finalServeCLI, finalServeWeb, nil
}
