package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

const defaultWrapWidth = 80

// Terminal renders Markdown as styled terminal text using glamour.
type Terminal struct {
	r *glamour.TermRenderer
}

// NewTerminal returns a terminal renderer wrapping at width columns
// (80 when width <= 0).
func NewTerminal(width int) (*Terminal, error) {
	if width <= 0 {
		width = defaultWrapWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("creating terminal renderer: %w", err)
	}

	return &Terminal{r: r}, nil
}

// Render returns the styled document. On failure the source is returned
// alongside the error so callers can still print something.
func (t *Terminal) Render(markdown string) (string, error) {
	out, err := t.r.Render(markdown)
	if err != nil {
		return markdown, err
	}
	return out, nil
}
