package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c, err := New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, c.ChunkSize())
		}
		if c.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, c.Overlap())
		}
	})

	t.Run("overlap equal to chunk size is a config error", func(t *testing.T) {
		_, err := New(WithChunkSize(100), WithOverlap(100))
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		_, err := New(WithChunkSize(100), WithOverlap(150))
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("snap window too wide", func(t *testing.T) {
		_, err := New(WithChunkSize(100), WithOverlap(20), WithSnapWindow(80))
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("from settings", func(t *testing.T) {
		c, err := New(FromSettings(domain.DefaultSettings().Chunking)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ChunkSize() != 600 || c.Overlap() != 150 {
			t.Errorf("expected 600/150, got %d/%d", c.ChunkSize(), c.Overlap())
		}
	})
}

func TestChunk_Lengths(t *testing.T) {
	c, err := New(WithChunkSize(600), WithOverlap(150))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		length int
		want   int
	}{
		{0, 0},
		{1, 1},
		{599, 1},
		{600, 1},
		{1201, 3},
	}

	for _, tt := range tests {
		text := strings.Repeat("x", tt.length)
		chunks := c.Chunk("doc", text)
		if len(chunks) != tt.want {
			t.Errorf("length %d: expected %d chunks, got %d", tt.length, tt.want, len(chunks))
			continue
		}
		for i, ch := range chunks {
			if len(ch.Text) > 600 {
				t.Errorf("length %d: chunk %d has %d bytes, above the ceiling", tt.length, i, len(ch.Text))
			}
			if text[ch.CharStart:ch.CharEnd] != ch.Text {
				t.Errorf("length %d: chunk %d offsets do not match its text", tt.length, i)
			}
			if ch.SequenceIndex != i {
				t.Errorf("length %d: expected sequence %d, got %d", tt.length, i, ch.SequenceIndex)
			}
		}
		for i := 0; i+1 < len(chunks); i++ {
			tail := chunks[i].Text[len(chunks[i].Text)-150:]
			head := chunks[i+1].Text[:150]
			if tail != head {
				t.Errorf("length %d: chunks %d and %d do not overlap by 150 bytes", tt.length, i, i+1)
			}
		}
	}
}

func TestChunk_1201Offsets(t *testing.T) {
	c, _ := New(WithChunkSize(600), WithOverlap(150))
	chunks := c.Chunk("doc", strings.Repeat("x", 1201))

	want := [][2]int{{0, 600}, {450, 1050}, {900, 1201}}
	for i, w := range want {
		if chunks[i].CharStart != w[0] || chunks[i].CharEnd != w[1] {
			t.Errorf("chunk %d: expected [%d,%d), got [%d,%d)",
				i, w[0], w[1], chunks[i].CharStart, chunks[i].CharEnd)
		}
	}
}

func TestChunk_WhitespaceOnly(t *testing.T) {
	c, _ := New()
	if chunks := c.Chunk("doc", "   \n\t  "); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for whitespace, got %d", len(chunks))
	}
}

func TestChunk_SnapsToSentenceEnd(t *testing.T) {
	c, err := New(WithChunkSize(50), WithOverlap(10), WithSnapWindow(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Sentence ends at byte 40, inside the window [30, 50].
	text := strings.Repeat("a", 39) + ". " + strings.Repeat("b", 60)
	chunks := c.Chunk("doc", text)

	if chunks[0].CharEnd != 40 {
		t.Errorf("expected first cut after the period at 40, got %d", chunks[0].CharEnd)
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("expected first chunk to end with a period, got %q", chunks[0].Text)
	}
	if chunks[1].CharStart != 30 {
		t.Errorf("expected second chunk to start overlap bytes before the cut, got %d", chunks[1].CharStart)
	}
}

func TestChunk_SnapsToWhitespace(t *testing.T) {
	c, _ := New(WithChunkSize(50), WithOverlap(10), WithSnapWindow(20))

	text := strings.Repeat("a", 44) + " " + strings.Repeat("b", 60)
	chunks := c.Chunk("doc", text)

	if chunks[0].CharEnd != 44 {
		t.Errorf("expected cut at the space (44), got %d", chunks[0].CharEnd)
	}
}

func TestChunk_HardCutOutsideWindow(t *testing.T) {
	c, _ := New(WithChunkSize(50), WithOverlap(10), WithSnapWindow(5))

	// Period at byte 20 is outside the window [45, 50].
	text := strings.Repeat("a", 19) + ". " + strings.Repeat("b", 80)
	chunks := c.Chunk("doc", text)

	if chunks[0].CharEnd != 50 {
		t.Errorf("expected hard cut at 50, got %d", chunks[0].CharEnd)
	}
}

func TestChunk_NeverSplitsRunes(t *testing.T) {
	c, _ := New(WithChunkSize(10), WithOverlap(3), WithSnapWindow(0))

	text := strings.Repeat("é", 20) // 2 bytes each
	chunks := c.Chunk("doc", text)

	for i, ch := range chunks {
		if !strings.HasPrefix(ch.Text, "é") || !strings.HasSuffix(ch.Text, "é") {
			t.Errorf("chunk %d splits a rune: %q", i, ch.Text)
		}
		if len(ch.Text) > 10 {
			t.Errorf("chunk %d exceeds the ceiling: %d bytes", i, len(ch.Text))
		}
	}
	if last := chunks[len(chunks)-1]; last.CharEnd != len(text) {
		t.Errorf("expected the last chunk to reach the end of the text")
	}
}

func TestChunk_SizesCountBytes(t *testing.T) {
	c, _ := New(WithChunkSize(10), WithOverlap(4), WithSnapWindow(0))

	text := strings.Repeat("é", 20) // 40 bytes
	chunks := c.Chunk("doc", text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	first, second := chunks[0], chunks[1]
	if first.CharEnd != 10 || utf8.RuneCountInString(first.Text) != 5 {
		t.Errorf("expected 10 bytes (5 runes) in the first chunk, got %d bytes, %d runes",
			first.CharEnd, utf8.RuneCountInString(first.Text))
	}
	if second.CharStart != first.CharEnd-4 {
		t.Errorf("expected a 4 byte overlap, next chunk starts at %d", second.CharStart)
	}
	if shared := text[second.CharStart:first.CharEnd]; shared != "éé" {
		t.Errorf("expected the overlap to carry 2 runes, got %q", shared)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, _ := New(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("The kidneys filter blood. ", 40)

	first := c.Chunk("doc-1", text)
	second := c.Chunk("doc-1", text)

	if len(first) != len(second) {
		t.Fatalf("expected same chunk count, got %d and %d", len(first), len(second))
	}
	seen := make(map[string]bool)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d: ids differ between runs", i)
		}
		if seen[first[i].ID] {
			t.Errorf("duplicate chunk ID: %s", first[i].ID)
		}
		seen[first[i].ID] = true
		if first[i].SourceDocumentID != "doc-1" {
			t.Errorf("expected SourceDocumentID doc-1, got %s", first[i].SourceDocumentID)
		}
	}
}

func TestChunkPages_RecordsPage(t *testing.T) {
	c, _ := New(WithChunkSize(50), WithOverlap(10), WithSnapWindow(0))

	pages := []string{strings.Repeat("a", 45), strings.Repeat("b", 45)}
	chunks := c.ChunkPages("doc", pages)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if chunks[0].Page != 1 {
		t.Errorf("expected first chunk on page 1, got %d", chunks[0].Page)
	}
	last := chunks[len(chunks)-1]
	if last.Page != 2 {
		t.Errorf("expected last chunk on page 2, got %d", last.Page)
	}
}

func TestChunkPages_Empty(t *testing.T) {
	c, _ := New()
	if chunks := c.ChunkPages("doc", nil); chunks != nil {
		t.Errorf("expected nil for no pages, got %d chunks", len(chunks))
	}
}
