// Package render turns conversation turns into displayable blocks.
package render

import (
	"github.com/linanwx/labmate/provider"
)

// Scroll tells the view how to position a newly shown block.
type Scroll int

const (
	// ScrollBottom scrolls the output pane to its end.
	ScrollBottom Scroll = iota
	// ScrollMessageTop scrolls so the top edge of the new block is visible.
	ScrollMessageTop
)

func (s Scroll) String() string {
	if s == ScrollMessageTop {
		return "top"
	}
	return "bottom"
}

// Block is one rendered chat message.
type Block struct {
	Role   string // provider.RoleUser or provider.RoleModel
	Text   string // source text as given to Render
	Body   string // HTML or ANSI, depending on the renderer
	Scroll Scroll
}

// Renderer formats chat text for one kind of surface.
type Renderer interface {
	Render(role, text string) Block
}

func scrollFor(role string) Scroll {
	if role == provider.RoleUser {
		return ScrollBottom
	}
	return ScrollMessageTop
}
