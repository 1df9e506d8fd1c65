// Package terminal captures terminal scroll-back as plain text.
package terminal

import (
	"reflect"
	"strings"
)

// Buffer is a line-indexed view of a terminal's scroll-back.
// Line returns the text of line i with trailing whitespace removed.
type Buffer interface {
	Len() int
	Line(i int) string
}

// Copier is implemented by buffers that can hand out all lines at once,
// consistent with a single point in time.
type Copier interface {
	Lines() []string
}

// Snapshot returns every non-empty line of buf, top to bottom, joined by
// newlines. A nil buffer yields "".
func Snapshot(buf Buffer) string {
	if isNil(buf) {
		return ""
	}
	var all []string
	if c, ok := buf.(Copier); ok {
		all = c.Lines()
	} else {
		n := buf.Len()
		all = make([]string, n)
		for i := range all {
			all[i] = buf.Line(i)
		}
	}
	lines := make([]string, 0, len(all))
	for _, line := range all {
		if line = strings.TrimRight(line, " \t\r\n"); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func isNil(buf Buffer) bool {
	if buf == nil {
		return true
	}
	v := reflect.ValueOf(buf)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Lines is a static Buffer.
type Lines []string

func (l Lines) Len() int { return len(l) }

func (l Lines) Line(i int) string {
	if i < 0 || i >= len(l) {
		return ""
	}
	return strings.TrimRight(l[i], " \t")
}
