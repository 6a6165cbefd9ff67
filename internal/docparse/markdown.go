// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docparse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pdiddy/persona-engine/pkg/types"
)

// MarkdownBodySize is the synthetic font size given to Markdown body text.
const MarkdownBodySize = 11.0

// pageMarker matches "<!-- page 3 -->" comments that split Markdown pages.
var pageMarker = regexp.MustCompile(`<!--\s*page\s+(\d+)\s*-->`)

// MarkdownParser reads Markdown documents. Headings become bold blocks
// whose font size grows with heading rank; page markers start new pages.
type MarkdownParser struct{}

// Parse reads and parses the Markdown file at path.
func (p *MarkdownParser) Parse(ctx context.Context, path string) (types.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading markdown: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return types.Document{}, err
	}
	return ParseMarkdown(filepath.Base(path), src), nil
}

// headingSize maps a Markdown heading level to a synthetic font size.
func headingSize(level int) float64 {
	switch level {
	case 1:
		return MarkdownBodySize * 2
	case 2:
		return MarkdownBodySize * 1.6
	case 3:
		return MarkdownBodySize * 1.3
	default:
		return MarkdownBodySize
	}
}

// ParseMarkdown converts Markdown source into a Document with the given ID.
func ParseMarkdown(id string, src []byte) types.Document {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	pages := []types.Page{{Number: 1}}
	cur := func() *types.Page { return &pages[len(pages)-1] }
	add := func(b types.Block) {
		if strings.TrimSpace(b.Text) == "" {
			return
		}
		cur().Blocks = append(cur().Blocks, b)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.HTMLBlock:
			raw := blockLines(node, src)
			if m := pageMarker.FindStringSubmatch(raw); m != nil {
				num, _ := strconv.Atoi(m[1])
				if len(cur().Blocks) == 0 && len(pages) == 1 {
					if num > 0 {
						cur().Number = num
					}
					continue
				}
				if num <= cur().Number {
					num = cur().Number + 1
				}
				pages = append(pages, types.Page{Number: num})
			}
		case *ast.Heading:
			add(types.Block{
				Text:     inlineText(node, src),
				FontSize: headingSize(node.Level),
				Flags:    types.FlagBold,
			})
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				add(types.Block{Text: "• " + inlineText(item, src), FontSize: MarkdownBodySize})
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			add(types.Block{Text: blockLines(n, src), FontSize: MarkdownBodySize})
		default:
			add(types.Block{Text: inlineText(n, src), FontSize: MarkdownBodySize})
		}
	}

	return types.Document{ID: id, Pages: pages}
}

// blockLines returns the raw source lines of a block node.
func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

// inlineText collects the text of n and its descendants.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
			return
		}
		if s, ok := n.(*ast.String); ok {
			buf.Write(s.Value)
			return
		}
		if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
			buf.WriteString(blockLines(n, src))
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
			if c.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
