// Package chunker splits extracted document text into bounded, overlapping passages.
package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// DefaultChunkSize is the default maximum chunk length in bytes.
const DefaultChunkSize = 600

// DefaultChunkOverlap is the default number of bytes shared by consecutive chunks.
const DefaultChunkOverlap = 150

// pageSeparator joins extracted pages before chunking.
const pageSeparator = "\n\n"

// Chunker splits text into chunks of at most chunkSize bytes.
//
// A cut prefers, in order: the end of a sentence inside the snap window,
// whitespace inside the snap window, a hard cut at chunkSize. The next chunk
// starts overlap bytes before the previous cut. Cuts never split a UTF-8 rune.
type Chunker struct {
	chunkSize  int
	overlap    int
	snapWindow int
	snapSet    bool
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in bytes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// WithSnapWindow sets how far before the hard cut a boundary may move.
// Zero disables snapping.
func WithSnapWindow(window int) Option {
	return func(c *Chunker) {
		c.snapWindow = window
		c.snapSet = true
	}
}

// FromSettings returns the options matching validated chunking settings.
func FromSettings(s domain.ChunkingSettings) []Option {
	return []Option{
		WithChunkSize(s.ChunkSize),
		WithOverlap(s.Overlap),
		WithSnapWindow(s.SnapWindow),
	}
}

// New creates a chunker. An overlap that is not smaller than the chunk size
// returns an error wrapping domain.ErrInvalidConfig.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if !c.snapSet && c.chunkSize > c.overlap {
		c.snapWindow = (c.chunkSize - c.overlap) / 3
	}

	settings := domain.ChunkingSettings{
		ChunkSize:  c.chunkSize,
		Overlap:    c.overlap,
		SnapWindow: c.snapWindow,
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// ChunkSize returns the configured maximum chunk length.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into chunks for the given document.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(docID, text string) []domain.Chunk {
	return c.chunk(docID, text, nil)
}

// ChunkPages joins pages with a blank line and chunks the result,
// recording the 1-based page each chunk starts on.
func (c *Chunker) ChunkPages(docID string, pages []string) []domain.Chunk {
	if len(pages) == 0 {
		return nil
	}

	starts := make([]int, len(pages))
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString(pageSeparator)
		}
		starts[i] = b.Len()
		b.WriteString(page)
	}

	return c.chunk(docID, b.String(), starts)
}

func (c *Chunker) chunk(docID, text string, pageStarts []int) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	n := len(text)
	step := c.chunkSize - c.overlap
	chunks := make([]domain.Chunk, 0, n/step+1)

	emit := func(start, end int) {
		body := text[start:end]
		if strings.TrimSpace(body) == "" {
			return
		}
		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:               domain.ChunkID(docID, seq, body),
			SourceDocumentID: docID,
			SequenceIndex:    seq,
			Text:             body,
			CharStart:        start,
			CharEnd:          end,
			Page:             pageOf(pageStarts, start),
		})
	}

	start := 0
	for {
		if start+c.chunkSize >= n {
			emit(start, n)
			break
		}

		end := c.cut(text, start)
		emit(start, end)

		next := alignForward(text, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// cut picks the end of the chunk starting at start. The caller guarantees
// start+chunkSize < len(text).
func (c *Chunker) cut(text string, start int) int {
	hard := alignBack(text, start+c.chunkSize)
	floor := start + c.chunkSize - c.snapWindow

	if c.snapWindow > 0 {
		if i := lastSentenceEnd(text, floor, hard); i > 0 {
			return i
		}
		if i := lastSpace(text, floor, hard); i > 0 {
			return i
		}
	}

	if hard <= start {
		// A single rune longer than the chunk; take it whole.
		_, size := utf8.DecodeRuneInString(text[start:])
		return start + size
	}
	return hard
}

// lastSentenceEnd returns the largest i in (floor, hard] such that text[i-1]
// ends a sentence and text[i] is whitespace, or 0.
func lastSentenceEnd(text string, floor, hard int) int {
	for i := hard; i > floor; i-- {
		switch text[i-1] {
		case '\n':
			return i
		case '.', '!', '?':
			if i == len(text) || isSpace(text[i]) {
				return i
			}
		}
	}
	return 0
}

// lastSpace returns the largest i in (floor, hard] with text[i] whitespace, or 0.
func lastSpace(text string, floor, hard int) int {
	for i := hard; i > floor; i-- {
		if isSpace(text[i]) {
			return i
		}
	}
	return 0
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func alignBack(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func alignForward(text string, i int) int {
	if i < 0 {
		return 0
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

func pageOf(starts []int, offset int) int {
	if len(starts) == 0 {
		return 0
	}
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
}
