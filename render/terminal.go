package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
)

// Terminal renders model Markdown as ANSI text for the CLI and TUI.
type Terminal struct {
	renderer *glamour.TermRenderer
}

// NewTerminal creates a renderer wrapping at width columns. With plain set
// the output carries no colors, for pipes and log files.
func NewTerminal(width int, plain bool) *Terminal {
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		logger.Warn("glamour renderer unavailable", "err", err)
		r = nil
	}
	return &Terminal{renderer: r}
}

// Render implements Renderer. User text is returned unchanged.
func (t *Terminal) Render(role, text string) Block {
	b := Block{Role: role, Text: text, Body: text, Scroll: scrollFor(role)}
	if role == provider.RoleUser || t.renderer == nil {
		return b
	}
	out, err := t.renderer.Render(text)
	if err != nil {
		logger.Warn("glamour render failed", "err", err)
		return b
	}
	b.Body = strings.Trim(out, "\n")
	return b
}
