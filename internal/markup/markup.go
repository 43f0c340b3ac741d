// Package markup turns subtitle markdown into speech markup for synthesis.
package markup

import (
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
	md           = goldmark.New()
)

// FromSubtitle converts a subtitle segment written in markdown into speech
// markup. Emphasis survives as <emphasis>; everything else is flattened to
// escaped text. It returns "" when there is nothing to speak.
func FromSubtitle(subtitle string) string {
	if strings.TrimSpace(subtitle) == "" {
		return ""
	}

	reader := text.NewReader([]byte(subtitle))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	walk(doc, reader.Source(), &buf)

	body := collapse(buf.String())
	if body == "" || strings.TrimSpace(Text(body)) == "" {
		return ""
	}
	return "<speak>" + body + "</speak>"
}

func walk(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
		return

	case *ast.Text:
		buf.WriteString(escape(string(n.Segment.Value(source))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteString(" ")
		}
		return

	case *ast.String:
		buf.WriteString(escape(string(n.Value)))
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.WriteString(escape(string(t.Segment.Value(source))))
			}
		}
		return

	case *ast.Emphasis:
		level := "moderate"
		if n.Level > 1 {
			level = "strong"
		}
		buf.WriteString(`<emphasis level="` + level + `">`)
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c, source, buf)
		}
		buf.WriteString("</emphasis>")
		return

	case *ast.Paragraph, *ast.Heading, *ast.ListItem:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c, source, buf)
		}
		if n.NextSibling() != nil {
			buf.WriteString(` <break time="300ms"/> `)
		}
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c, source, buf)
	}
}

// Normalize returns the canonical form of markup used for cache keys:
// NFC, single spaces, trimmed.
func Normalize(markup string) string {
	return collapse(norm.NFC.String(markup))
}

// Text strips tags from markup and unescapes entities, leaving the plain
// words an engine without markup support should speak.
func Text(markup string) string {
	plain := tagPattern.ReplaceAllString(markup, " ")
	return collapse(html.UnescapeString(plain))
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
