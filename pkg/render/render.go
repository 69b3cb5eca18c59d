// Package render turns assistant reply bodies (Markdown) into displayable
// output: highlighted HTML, styled terminal text, or the raw text itself.
package render

import "fmt"

// Kind names an output format.
type Kind string

const (
	KindTerminal Kind = "terminal"
	KindHTML     Kind = "html"
	KindPlain    Kind = "plain"
)

// Renderer converts a Markdown document to display output. Implementations
// must tolerate incomplete documents, since replies are re-rendered while
// they stream in (e.g. an unterminated code fence).
type Renderer interface {
	Render(markdown string) (string, error)
}

// New returns the Renderer for kind. width is the wrap width for terminal
// output and is ignored otherwise.
func New(kind Kind, width int) (Renderer, error) {
	switch kind {
	case KindTerminal, "":
		return NewTerminal(width)
	case KindHTML:
		return NewHTML(), nil
	case KindPlain:
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("unknown render kind: %q (available: terminal, html, plain)", kind)
	}
}

// Plain returns the Markdown source unchanged.
type Plain struct{}

func (Plain) Render(markdown string) (string, error) {
	return markdown, nil
}
