package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// chunkIDPrefixLen is how much of a chunk's text feeds its id hash.
const chunkIDPrefixLen = 100

// Chunk is a bounded, overlapping passage of a source document.
// Chunks are immutable once created.
type Chunk struct {
	// ID is deterministic over (SourceDocumentID, SequenceIndex, Text prefix),
	// so re-chunking the same document yields the same ids.
	ID string

	// SourceDocumentID identifies the document this chunk came from.
	SourceDocumentID string

	// SequenceIndex is the zero-based position of this chunk in the document.
	SequenceIndex int

	// Text is the chunk content.
	Text string

	// CharStart is the byte offset of the chunk's first character in the source text.
	CharStart int

	// CharEnd is the byte offset one past the chunk's last character.
	CharEnd int

	// Page is the 1-based page the chunk starts on, or 0 when unknown.
	Page int
}

// ChunkID derives the deterministic id for a chunk.
func ChunkID(docID string, seq int, text string) string {
	prefix := text
	if len(prefix) > chunkIDPrefixLen {
		prefix = prefix[:chunkIDPrefixLen]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", docID, seq, prefix)))
	return fmt.Sprintf("chunk_%06d_%s", seq, hex.EncodeToString(sum[:])[:8])
}

// TaskType tells the embedding provider how a vector will be used.
// Providers that distinguish documents from queries embed them differently.
type TaskType string

// Embedding task types.
const (
	// TaskTypeDocument embeds a passage to be stored and searched.
	TaskTypeDocument TaskType = "document"

	// TaskTypeQuery embeds a user query to search with.
	TaskTypeQuery TaskType = "query"
)

// EmbeddingRecord pairs a chunk with its vector.
type EmbeddingRecord struct {
	ChunkID      string
	Vector       []float32
	ModelVersion string
}

// Document is a source handed to the ingestion pipeline.
type Document struct {
	// ID identifies the document. Defaults to a content hash when empty.
	ID string

	// Source locates the document: a file path or a reference:// name.
	// Resume reloads the document from it.
	Source string

	// Title labels retrieved chunks. Defaults to the base name of Source.
	Title string

	// MIMEType selects the text extractor.
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// IngestedAt is stamped on every vector produced from this document.
	IngestedAt time.Time
}

// DisplayName returns Title, or the last path element of Source.
func (d Document) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	name := d.Source
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// DocumentID derives a stable id for raw document content.
func DocumentID(content []byte) string {
	sum := sha256.Sum256(content)
	return "doc_" + hex.EncodeToString(sum[:])[:16]
}
