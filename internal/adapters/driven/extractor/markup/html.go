package markup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure HTML implements the interface.
var _ driven.TextExtractor = (*HTML)(nil)

var errEmpty = errors.New("empty document")

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
}

// block elements start a new line.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Section: true, atom.Article: true,
}

// HTML extracts visible text from HTML documents.
type HTML struct{}

// NewHTML creates an HTML extractor.
func NewHTML() *HTML {
	return &HTML{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (h *HTML) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Extract returns the document's visible text as a single page, one line
// per block element. Entities are decoded by the tokenizer.
func (h *HTML) Extract(_ context.Context, content []byte) ([]string, error) {
	z := html.NewTokenizer(bytes.NewReader(content))

	var b strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			text := collapseLines(b.String())
			if text == "" {
				return nil, errEmpty
			}
			return []string{text}, nil

		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] {
				depth++
			}
			if block[a] {
				b.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] && depth > 0 {
				depth--
			}
			if block[a] {
				b.WriteByte('\n')
			}

		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if block[atom.Lookup(name)] {
				b.WriteByte('\n')
			}

		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// collapseLines trims every line, collapses inner whitespace and drops
// empty lines.
func collapseLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
