package markup

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/carebot/internal/adapters/driven/extractor/plaintext"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure Markdown implements the interface.
var _ driven.TextExtractor = (*Markdown)(nil)

var (
	mdFence      = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode = regexp.MustCompile("`([^`]+)`")
	mdImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdQuote      = regexp.MustCompile(`(?m)^>\s?`)
	mdRule       = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	mdBullet     = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	mdEmphasis   = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	mdBlankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Markdown extracts text from Markdown documents.
type Markdown struct {
	text *plaintext.Extractor
}

// NewMarkdown creates a Markdown extractor.
func NewMarkdown() *Markdown {
	return &Markdown{text: plaintext.New()}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (m *Markdown) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Extract decodes the document like plain text and strips Markdown syntax
// from each page. Fenced code blocks are dropped; inline code keeps its text.
func (m *Markdown) Extract(ctx context.Context, content []byte) ([]string, error) {
	pages, err := m.text.Extract(ctx, content)
	if err != nil {
		return nil, err
	}

	out := pages[:0]
	for _, page := range pages {
		if text := stripMarkdown(page); text != "" {
			out = append(out, text)
		}
	}
	if len(out) == 0 {
		return nil, errEmpty
	}
	return out, nil
}

func stripMarkdown(s string) string {
	s = mdFence.ReplaceAllString(s, "")
	s = mdImage.ReplaceAllString(s, "")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdInlineCode.ReplaceAllString(s, "$1")
	s = mdRule.ReplaceAllString(s, "")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdQuote.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "$1")
	s = mdEmphasis.ReplaceAllString(s, "$2")
	s = mdBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
