package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/linanwx/labmate/logger"
)

// ShellOptions configures a pty-backed shell.
type ShellOptions struct {
	Path         string
	Rows, Cols   uint16
	MaxLines     int
	MaxLineWidth int
	Env          []string
	// Output, if set, receives every chunk read from the pty in addition to
	// the scroll-back buffer.
	Output func([]byte)
}

// Shell is an interactive shell on a pseudo terminal. Everything it prints
// is mirrored into a Scrollback so the assistant can read it.
type Shell struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	buffer *Scrollback
	output func([]byte)

	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	exitErr error
}

// StartShell spawns opts.Path on a new pty. The shell is killed when ctx ends.
func StartShell(ctx context.Context, opts ShellOptions) (*Shell, error) {
	if opts.Path == "" {
		return nil, errors.New("empty shell path")
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	cmd := exec.CommandContext(ctx, opts.Path)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	s := &Shell{
		cmd:    cmd,
		ptmx:   ptmx,
		buffer: NewScrollback(opts.MaxLines, opts.MaxLineWidth),
		output: opts.Output,
		done:   make(chan struct{}),
	}
	logger.Info("shell started", "path", opts.Path, "pid", cmd.Process.Pid, "rows", opts.Rows, "cols", opts.Cols)

	go s.readLoop()
	go s.waitLoop()
	return s, nil
}

// Buffer returns the scroll-back the shell writes into.
func (s *Shell) Buffer() *Scrollback { return s.buffer }

// Done is closed when the shell exits or is closed.
func (s *Shell) Done() <-chan struct{} { return s.done }

// Write sends keystrokes to the shell.
func (s *Shell) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.ErrClosedPipe
	default:
	}
	return s.ptmx.Write(p)
}

// Resize changes the pty window size.
func (s *Shell) Resize(rows, cols uint16) error {
	if rows == 0 || cols == 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Close terminates the shell.
func (s *Shell) Close() error {
	s.close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return nil
}

// Err returns the exit error once the shell is done.
func (s *Shell) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *Shell) close() {
	s.once.Do(func() {
		_ = s.ptmx.Close()
		close(s.done)
	})
}

func (s *Shell) readLoop() {
	tmp := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(tmp)
		if n > 0 {
			chunk := append([]byte(nil), tmp[:n]...)
			_, _ = s.buffer.Write(chunk)
			if s.output != nil {
				s.output(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Shell) waitLoop() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()
	logger.Info("shell exited", "pid", s.cmd.Process.Pid, "err", err)
	s.close()
}
