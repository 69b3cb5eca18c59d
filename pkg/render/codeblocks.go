package render

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in a reply.
type CodeBlock struct {
	// Index is the 1-based position of the block in the document.
	Index    int
	Language string
	Code     string
}

// IsSQL reports whether the block is tagged as SQL and can be run against
// the warehouse.
func (b CodeBlock) IsSQL() bool {
	return strings.EqualFold(b.Language, "sql")
}

var (
	parserOnce sync.Once
	parserMD   goldmark.Markdown
)

func markdownParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserMD = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserMD
}

// CodeBlocks returns the fenced code blocks of a Markdown document in order.
func CodeBlocks(markdown string) []CodeBlock {
	source := []byte(markdown)
	doc := markdownParser().Parser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		blocks = append(blocks, CodeBlock{
			Index:    len(blocks) + 1,
			Language: string(fenced.Language(source)),
			Code:     blockText(fenced, source),
		})
		return ast.WalkSkipChildren, nil
	})

	return blocks
}

// SQLBlocks returns only the SQL blocks of a document, keeping their
// document-wide Index.
func SQLBlocks(markdown string) []CodeBlock {
	var out []CodeBlock
	for _, b := range CodeBlocks(markdown) {
		if b.IsSQL() {
			out = append(out, b)
		}
	}
	return out
}
