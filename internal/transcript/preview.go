// Package transcript summarizes chat transcripts returned by the API.
package transcript

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/healthtestai/apicheck/internal/shape"
)

var md = goldmark.New()

// Preview returns the plain text of the first heading or paragraph of a
// markdown document, truncated to n runes. Emphasis, links and code spans are
// reduced to their text.
func Preview(markdown string, n int) string {
	src := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(src))

	var first string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch node.Kind() {
		case ast.KindHeading, ast.KindParagraph:
			first = strings.TrimSpace(plainText(node, src))
		}
		if first != "" {
			break
		}
	}
	if first == "" {
		first = strings.TrimSpace(markdown)
		if i := strings.IndexByte(first, '\n'); i >= 0 {
			first = first[:i]
		}
	}
	return shape.Truncate(first, n)
}

func plainText(node ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// Counts tallies the messages of a session by role.
type Counts struct {
	User      int
	Assistant int
	Total     int
}

// Tally counts msgs by role.
func Tally(msgs []shape.ChatMessage) Counts {
	var c Counts
	for _, m := range msgs {
		c.Total++
		switch m.Role {
		case shape.RoleUser:
			c.User++
		case shape.RoleAssistant:
			c.Assistant++
		}
	}
	return c
}
