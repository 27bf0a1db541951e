package services

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// ReferenceScheme prefixes the sources of built-in reference documents.
const ReferenceScheme = "reference://"

// MIME types the pipeline recognises by file extension.
const (
	MIMETypePDF      = "application/pdf"
	MIMETypeText     = "text/plain"
	MIMETypeMarkdown = "text/markdown"
	MIMETypeHTML     = "text/html"
)

//go:embed reference/*.txt
var referenceFS embed.FS

// ReferenceDocuments returns the built-in clinical reference texts, sorted
// by name. The first line of each file is its title.
func ReferenceDocuments() ([]domain.Document, error) {
	entries, err := referenceFS.ReadDir("reference")
	if err != nil {
		return nil, fmt.Errorf("reading reference corpus: %w", err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		doc, err := referenceDocument(strings.TrimSuffix(entry.Name(), ".txt"))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

func referenceDocument(name string) (domain.Document, error) {
	raw, err := referenceFS.ReadFile("reference/" + name + ".txt")
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: reference document %q", domain.ErrNotFound, name)
	}
	title, body, _ := strings.Cut(string(raw), "\n")
	content := []byte(strings.TrimSpace(body))
	return domain.Document{
		ID:       domain.DocumentID(content),
		Source:   ReferenceScheme + name,
		Title:    strings.TrimSpace(title),
		MIMEType: MIMETypeText,
		Content:  content,
	}, nil
}

// LoadDocument reads a document from a file path or a reference:// source.
func LoadDocument(_ context.Context, source string) (domain.Document, error) {
	if name, ok := strings.CutPrefix(source, ReferenceScheme); ok {
		return referenceDocument(name)
	}

	content, err := os.ReadFile(source)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", source, err)
	}
	return domain.Document{
		ID:         domain.DocumentID(content),
		Source:     source,
		MIMEType:   DetectMIMEType(source),
		Content:    content,
		IngestedAt: time.Now().UTC(),
	}, nil
}

// DetectMIMEType maps a file extension to a MIME type. Unknown extensions
// are treated as plain text.
func DetectMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return MIMETypePDF
	case ".md", ".markdown":
		return MIMETypeMarkdown
	case ".html", ".htm":
		return MIMETypeHTML
	default:
		return MIMETypeText
	}
}
