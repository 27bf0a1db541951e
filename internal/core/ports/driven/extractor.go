package driven

import "context"

// TextExtractor turns document bytes into ordered page texts.
// The ingestion pipeline wraps failures in *domain.ExtractionError with the
// document source.
type TextExtractor interface {
	// Extract returns one string per page.
	Extract(ctx context.Context, content []byte) ([]string, error)

	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string
}
