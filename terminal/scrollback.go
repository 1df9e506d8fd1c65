package terminal

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

const (
	defaultMaxLines     = 1000
	defaultMaxLineWidth = 512
)

// Scrollback is a bounded, concurrency-safe Buffer fed with raw terminal
// output. Escape sequences are stripped; carriage return and backspace move
// the cursor within the current line.
type Scrollback struct {
	mu       sync.Mutex
	lines    []string
	pending  []byte // raw bytes of the unterminated last line
	maxLines int
	maxWidth int
}

// NewScrollback creates a buffer keeping at most maxLines lines of at most
// maxWidth cells. Non-positive values select the defaults.
func NewScrollback(maxLines, maxWidth int) *Scrollback {
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	if maxWidth <= 0 {
		maxWidth = defaultMaxLineWidth
	}
	return &Scrollback{maxLines: maxLines, maxWidth: maxWidth}
}

// Write implements io.Writer.
func (s *Scrollback) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			s.commit()
			continue
		}
		s.pending = append(s.pending, b)
	}
	// Keep an endless line (progress bars, cat of a binary) from growing without bound.
	if len(s.pending) > 16*s.maxWidth {
		s.pending = []byte(s.cook(s.pending))
	}
	return len(p), nil
}

func (s *Scrollback) commit() {
	s.lines = append(s.lines, s.cook(s.pending))
	s.pending = s.pending[:0]
	if over := len(s.lines) - s.maxLines; over > 0 {
		s.lines = append(s.lines[:0:0], s.lines[over:]...)
	}
}

// cook turns a raw line into the text a terminal would display.
func (s *Scrollback) cook(raw []byte) string {
	var cells []rune
	col := 0
	segStart := 0
	flush := func(seg []byte) {
		for _, r := range ansi.Strip(string(seg)) {
			if (r < 0x20 && r != '\t') || r == 0x7f {
				continue
			}
			if col < len(cells) {
				cells[col] = r
			} else {
				cells = append(cells, r)
			}
			col++
		}
	}
	for i, b := range raw {
		switch b {
		case '\r':
			flush(raw[segStart:i])
			col = 0
			segStart = i + 1
		case '\b':
			flush(raw[segStart:i])
			if col > 0 {
				col--
			}
			segStart = i + 1
		}
	}
	flush(raw[segStart:])

	line := strings.TrimRight(string(cells), " \t")
	return ansi.Truncate(line, s.maxWidth, "")
}

// Len returns the number of lines, including the unterminated last line.
func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		return len(s.lines) + 1
	}
	return len(s.lines)
}

// Line returns line i as plain text.
func (s *Scrollback) Line(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case i >= 0 && i < len(s.lines):
		return s.lines[i]
	case i == len(s.lines) && len(s.pending) > 0:
		return s.cook(s.pending)
	}
	return ""
}

// Lines returns a copy of every line, including the unterminated last line.
func (s *Scrollback) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines), len(s.lines)+1)
	copy(out, s.lines)
	if len(s.pending) > 0 {
		out = append(out, s.cook(s.pending))
	}
	return out
}

// Reset discards all content.
func (s *Scrollback) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.pending = nil
}
