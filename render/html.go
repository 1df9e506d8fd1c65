package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTML renders user text as escaped plain text and model text as sanitized
// Markdown HTML.
type HTML struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTML creates an HTML renderer.
func NewHTML() *HTML {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &HTML{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}
}

// Render implements Renderer.
func (h *HTML) Render(role, text string) Block {
	b := Block{Role: role, Text: text, Scroll: scrollFor(role)}
	if role == provider.RoleUser {
		b.Body = userHTML(text)
		return b
	}
	b.Body = h.Markdown(text)
	return b
}

// Markdown converts text to sanitized HTML.
func (h *HTML) Markdown(text string) string {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		logger.Warn("markdown conversion failed, showing plain text", "err", err)
		return userHTML(text)
	}
	return strings.TrimSpace(h.policy.Sanitize(buf.String()))
}

// userHTML escapes text so markup typed by the user is shown literally.
func userHTML(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
