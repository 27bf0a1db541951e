// Package plaintext extracts text from plain text documents.
package plaintext

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor returns text documents as pages split on form feeds.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
	}
}

// Extract decodes UTF-8 content, normalises line endings and returns one
// page per form-feed separated section.
func (e *Extractor) Extract(_ context.Context, content []byte) ([]string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, errors.New("content is not valid UTF-8")
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty document")
	}

	var pages []string
	for _, page := range strings.Split(text, "\f") {
		if strings.TrimSpace(page) != "" {
			pages = append(pages, page)
		}
	}
	return pages, nil
}
