package terminal

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/linanwx/labmate/logger"
)

// Transcript is a Buffer backed by a file recorded with script(1). The file
// is re-read whenever it changes, so every snapshot reflects the latest
// output of the recorded session.
type Transcript struct {
	path     string
	maxLines int
	maxWidth int

	mu      sync.Mutex
	buffer  *Scrollback
	modTime time.Time
	size    int64
}

// NewTranscript creates a transcript reader for path.
func NewTranscript(path string, maxLines, maxWidth int) *Transcript {
	return &Transcript{
		path:     path,
		maxLines: maxLines,
		maxWidth: maxWidth,
		buffer:   NewScrollback(maxLines, maxWidth),
	}
}

// Path returns the transcript file path.
func (t *Transcript) Path() string { return t.path }

// Len reloads the file if it changed and returns the number of lines.
func (t *Transcript) Len() int {
	if err := t.refresh(); err != nil {
		logger.Warn("transcript read failed", "path", t.path, "err", err)
	}
	return t.current().Len()
}

// Line returns line i of the last loaded content.
func (t *Transcript) Line(i int) string {
	return t.current().Line(i)
}

// Lines reloads the file if it changed and returns a copy of its lines.
func (t *Transcript) Lines() []string {
	if err := t.refresh(); err != nil {
		logger.Warn("transcript read failed", "path", t.path, "err", err)
	}
	return t.current().Lines()
}

func (t *Transcript) current() *Scrollback {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer
}

func (t *Transcript) refresh() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if info.ModTime().Equal(t.modTime) && info.Size() == t.size {
		return nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	buf := NewScrollback(t.maxLines, t.maxWidth)
	_, _ = buf.Write(stripScriptHeader(data))
	t.buffer = buf
	t.modTime = info.ModTime()
	t.size = info.Size()
	return nil
}

// stripScriptHeader drops the "Script started on" / "Script done on" lines
// script(1) adds around the session.
func stripScriptHeader(data []byte) []byte {
	if bytes.HasPrefix(data, []byte("Script started on")) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		} else {
			data = nil
		}
	}
	trimmed := bytes.TrimRight(data, "\r\n")
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		if bytes.HasPrefix(bytes.TrimLeft(trimmed[i+1:], "\r\n"), []byte("Script done on")) {
			data = trimmed[:i+1]
		}
	} else if bytes.HasPrefix(trimmed, []byte("Script done on")) {
		data = nil
	}
	return data
}
