package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/linanwx/labmate/provider"
	"github.com/linanwx/labmate/render"
	"github.com/linanwx/labmate/widget"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question about a terminal transcript",
	Long: `Ask a single question and print the answer.

The terminal context is read from --transcript (a file recorded with
script(1)), falling back to terminal.transcript in the config.

Examples:
  script -q -f /tmp/lab.log        # in the lab shell
  labmate ask --transcript /tmp/lab.log "why did nmap fail?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var askTranscript string

func init() {
	askCmd.Flags().StringVar(&askTranscript, "transcript", "", "script(1) transcript to use as terminal context")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model, err := provider.FromConfig(cfg)
	if err != nil {
		return err
	}

	path := askTranscript
	if path == "" {
		path = cfg.Terminal.Transcript
	}

	out := cmd.OutOrStdout()
	width, plain := 80, true
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		plain = false
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := widget.New(widget.Options{
		ID:           "ask",
		Provider:     model,
		ProviderName: cfg.Assistant.Provider,
		Key:          cfg.APIKey(),
		Terminal:     transcriptBuffer(cfg, path),
		Renderer:     render.NewTerminal(width, plain),
		View:         &printView{out: out},
		Lessons:      cfg.Assistant.Lessons,
	})
	if err := w.Submit(ctx, strings.Join(args, " ")); err != nil {
		// Already shown as an error block.
		cmd.SilenceErrors = true
		return err
	}
	return nil
}

// printView writes answers and errors to out. The question was typed on the
// command line, so user blocks are not echoed.
type printView struct {
	out io.Writer
}

func (v *printView) Show(_ context.Context, b render.Block) {
	if b.Role == provider.RoleUser {
		return
	}
	fmt.Fprintln(v.out, b.Body)
}

func (v *printView) SetLoading(context.Context, bool) {}
