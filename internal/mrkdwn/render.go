// ABOUTME: Converts Markdown from agent replies into Slack mrkdwn
// ABOUTME: Walks the goldmark AST emitting Slack formatting instead of HTML

package mrkdwn

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Slack has no horizontal rule, so thematic breaks render as a line.
const ruleLine = "──────────"

// Render converts standard Markdown into Slack mrkdwn. The conversion
// is total: constructs Slack cannot express degrade to their plain
// text content, so the result is always postable.
func Render(markdown string) string {
	source := []byte(markdown)
	parser := goldmark.New(goldmark.WithExtensions(extension.Strikethrough)).Parser()
	doc := parser.Parse(text.NewReader(source))

	r := renderer{source: source}
	var b strings.Builder
	r.blocks(&b, doc, 0)
	return strings.TrimRight(b.String(), "\n")
}

type renderer struct {
	source []byte
}

// blocks renders the children of parent, blank-line separated.
func (r *renderer) blocks(b *strings.Builder, parent ast.Node, indent int) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if n != parent.FirstChild() {
			b.WriteString("\n")
		}
		r.block(b, n, indent)
	}
}

func (r *renderer) block(b *strings.Builder, n ast.Node, indent int) {
	switch n := n.(type) {
	case *ast.Heading:
		// mrkdwn has no headings; a bold line is the convention
		b.WriteString("*" + strings.TrimSpace(r.inlines(n)) + "*\n")
	case *ast.Paragraph:
		b.WriteString(r.inlines(n) + "\n")
	case *ast.TextBlock:
		b.WriteString(r.inlines(n) + "\n")
	case *ast.FencedCodeBlock:
		r.codeLines(b, n)
	case *ast.CodeBlock:
		r.codeLines(b, n)
	case *ast.Blockquote:
		var inner strings.Builder
		r.blocks(&inner, n, indent)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			if line == "" {
				b.WriteString(">\n")
			} else {
				b.WriteString("> " + line + "\n")
			}
		}
	case *ast.List:
		r.list(b, n, indent)
	case *ast.ThematicBreak:
		b.WriteString(ruleLine + "\n")
	case *ast.HTMLBlock:
		for i := 0; i < n.Lines().Len(); i++ {
			seg := n.Lines().At(i)
			b.Write(seg.Value(r.source))
		}
	default:
		b.WriteString(r.inlines(n) + "\n")
	}
}

// codeLines emits a code fence. Slack fences carry no language tag.
func (r *renderer) codeLines(b *strings.Builder, n ast.Node) {
	b.WriteString("```\n")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.source))
	}
	b.WriteString("```\n")
}

func (r *renderer) list(b *strings.Builder, n *ast.List, indent int) {
	num := n.Start
	if num == 0 {
		num = 1
	}

	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		var marker string
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		} else {
			marker = "• "
		}

		var content strings.Builder
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if nested, ok := c.(*ast.List); ok {
				r.list(&content, nested, indent+1)
			} else {
				r.block(&content, c, indent+1)
			}
		}

		for i, line := range strings.Split(strings.TrimRight(content.String(), "\n"), "\n") {
			if i == 0 {
				b.WriteString(strings.Repeat("    ", indent) + marker + line + "\n")
			} else {
				b.WriteString(line + "\n")
			}
		}
	}
}

// inlines renders the inline children of n to a string.
func (r *renderer) inlines(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(&b, c)
	}
	return b.String()
}

func (r *renderer) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(r.source))
		if n.HardLineBreak() || n.SoftLineBreak() {
			b.WriteString("\n")
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Emphasis:
		// Slack swaps the markers: * is bold, _ is italic
		marker := "_"
		if n.Level == 2 {
			marker = "*"
		}
		b.WriteString(marker + r.inlines(n) + marker)
	case *extast.Strikethrough:
		b.WriteString("~" + r.inlines(n) + "~")
	case *ast.CodeSpan:
		b.WriteString("`" + r.inlines(n) + "`")
	case *ast.Link:
		b.WriteString("<" + string(n.Destination) + "|" + r.inlines(n) + ">")
	case *ast.AutoLink:
		b.WriteString("<" + string(n.URL(r.source)) + ">")
	case *ast.Image:
		b.WriteString("<" + string(n.Destination) + "|" + r.inlines(n) + ">")
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(r.source))
		}
	default:
		if n.HasChildren() {
			b.WriteString(r.inlines(n))
		}
	}
}
