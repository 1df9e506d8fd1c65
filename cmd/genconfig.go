package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
	"github.com/spf13/cobra"
)

const (
	genconfigKeyName  = "GEMINI_API_KEY"
	genconfigDebounce = 200 * time.Millisecond
)

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Write the browser config script from a .env file",
	Long: `Read GEMINI_API_KEY from a .env file and write it into the JavaScript
config file loaded by a statically hosted lab page.

Examples:
  labmate genconfig
  labmate genconfig --env ../.env --out site/js/config.js
  labmate genconfig --watch    # regenerate whenever .env changes`,
	SilenceErrors: true,
	RunE:          runGenconfig,
}

var (
	genconfigEnv   string
	genconfigOut   string
	genconfigWatch bool
)

func init() {
	genconfigCmd.Flags().StringVar(&genconfigEnv, "env", ".env", "Path of the .env file")
	genconfigCmd.Flags().StringVar(&genconfigOut, "out", filepath.Join("docs", "site", "js", "config.js"), "Path of the generated config script")
	genconfigCmd.Flags().BoolVar(&genconfigWatch, "watch", false, "Keep running and regenerate when the .env file changes")
	rootCmd.AddCommand(genconfigCmd)
}

func runGenconfig(cmd *cobra.Command, _ []string) error {
	if err := generateConfig(genconfigEnv, genconfigOut); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), genconfigMessage(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated %s from %s\n", genconfigOut, genconfigEnv)

	if !genconfigWatch {
		return nil
	}

	w, err := newEnvWatcher(genconfigEnv, genconfigOut)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes. Press Ctrl+C to stop.\n", genconfigEnv)
	w.run(ctx, func(err error) {
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), genconfigMessage(err))
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated %s from %s\n", genconfigOut, genconfigEnv)
	})
	return nil
}

// generateConfig reads the key from envPath and writes the config script.
func generateConfig(envPath, outPath string) error {
	key, err := config.ReadDotEnvKey(envPath, genconfigKeyName)
	if err != nil {
		return err
	}
	script, err := renderConfigJS(key)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(outPath, []byte(script), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// renderConfigJS returns the script defining CONFIG. The key is emitted as a
// JSON string literal so quotes and backslashes cannot break out of it.
func renderConfigJS(key string) (string, error) {
	lit, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return "// Generated from .env\nconst CONFIG = {\n    " + genconfigKeyName + ": " + string(lit) + "\n};\n", nil
}

func genconfigMessage(err error) string {
	if errors.Is(err, config.ErrEnvFileMissing) {
		return "Error: .env file not found!"
	}
	return "Error: " + err.Error()
}

// envWatcher regenerates the config script when the .env file changes.
type envWatcher struct {
	watcher *fsnotify.Watcher
	envPath string
	outPath string
}

// newEnvWatcher watches the directory holding envPath, so editors that
// replace the file by renaming are seen too.
func newEnvWatcher(envPath, outPath string) (*envWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(envPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", envPath, err)
	}
	return &envWatcher{watcher: watcher, envPath: envPath, outPath: outPath}, nil
}

func (w *envWatcher) Close() error { return w.watcher.Close() }

// run blocks until ctx ends. onUpdate is called after every regeneration.
func (w *envWatcher) run(ctx context.Context, onUpdate func(error)) {
	target := filepath.Clean(w.envPath)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Editors often write in several steps; regenerate once.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(genconfigDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			err := generateConfig(w.envPath, w.outPath)
			if err != nil {
				logger.Warn("config regeneration failed", "env", w.envPath, "err", err)
			} else {
				logger.Info("config regenerated", "env", w.envPath, "out", w.outPath)
			}
			onUpdate(err)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("env watcher error", "err", err)
		}
	}
}
