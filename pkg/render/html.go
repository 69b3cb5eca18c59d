package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const defaultCodeStyle = "monokai"

// HTML renders GitHub-flavored Markdown to an HTML fragment. Fenced code
// blocks are syntax highlighted with inline styles and wrapped in a
// <div class="code-block language-<lang>"> so clients can attach actions
// (copy, run query) per block.
type HTML struct {
	md goldmark.Markdown
}

// NewHTML returns an HTML renderer. It is safe for concurrent use.
func NewHTML() *HTML {
	return &HTML{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				// Registered ahead of the default HTML renderer (priority 1000).
				renderer.WithNodeRenderers(util.Prioritized(newCodeBlockRenderer(defaultCodeStyle), 200)),
			),
		),
	}
}

func (h *HTML) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// codeBlockRenderer renders fenced code blocks through chroma.
type codeBlockRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeBlockRenderer(styleName string) *codeBlockRenderer {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	return &codeBlockRenderer{
		style:     style,
		formatter: chromahtml.New(chromahtml.TabWidth(4)),
	}
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ast.FencedCodeBlock)
	lang := string(n.Language(source))
	code := blockText(n, source)

	fmt.Fprintf(w, `<div class="code-block language-%s">`, html.EscapeString(lang))

	if err := r.highlight(w, lang, code); err != nil {
		// Highlighting is cosmetic; fall back to an escaped block.
		fmt.Fprintf(w, "<pre><code>%s</code></pre>", html.EscapeString(code))
	}

	_, _ = w.WriteString("</div>\n")

	return ast.WalkSkipChildren, nil
}

func (r *codeBlockRenderer) highlight(w util.BufWriter, lang, code string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, it); err != nil {
		return err
	}

	_, err = w.Write(buf.Bytes())
	return err
}

// blockText returns the raw contents of a block node.
func blockText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}
