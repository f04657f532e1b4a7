package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

// numbered repeats format with a running counter so every region of the
// text is unique and offset location by forward search is unambiguous.
func numbered(n int, format string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, format, i)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Core chunker tests
// ---------------------------------------------------------------------------

func TestSplitSmallDocumentSingleChunk(t *testing.T) {
	c := New(Config{MaxChunkSize: 100, ChunkOverlap: 20, MinDocumentSize: 50})
	content := "short note about nothing much"

	chunks := c.Split(content)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != content {
		t.Errorf("chunk content = %q, want whole document", chunks[0].Content)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len(content) {
		t.Errorf("offsets = [%d,%d), want [0,%d)", chunks[0].StartOffset, chunks[0].EndOffset, len(content))
	}
}

func TestSplitEmpty(t *testing.T) {
	c := New(Config{})
	if chunks := c.Split(""); chunks != nil {
		t.Fatalf("expected nil for empty content, got %d chunks", len(chunks))
	}
}

func TestSplitParagraphs(t *testing.T) {
	c := New(Config{MaxChunkSize: 80, ChunkOverlap: 10, MinDocumentSize: 10})
	content := strings.Repeat("first paragraph of moderate length here.\n\n", 2) +
		"second block with different words entirely.\n\n" +
		"third block closing out the document text."

	chunks := c.Split(content)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Content); n > 80 {
			t.Errorf("chunk %d has %d runes, max 80", ch.Index, n)
		}
	}
}

// ---------------------------------------------------------------------------
// Coverage, overlap bound, offsets
// ---------------------------------------------------------------------------

// checkCoverage verifies that chunk offsets are literal substrings, start at 0,
// end at len(content), and leave no gap between consecutive chunks.
func checkCoverage(t *testing.T, content string, chunks []Chunk) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	for _, ch := range chunks {
		if ch.StartOffset < 0 || ch.EndOffset > len(content) || ch.StartOffset >= ch.EndOffset {
			t.Fatalf("chunk %d has invalid range [%d,%d)", ch.Index, ch.StartOffset, ch.EndOffset)
		}
		if got := content[ch.StartOffset:ch.EndOffset]; got != ch.Content {
			t.Fatalf("chunk %d content does not match its offsets\n got: %q\nwant: %q", ch.Index, got, ch.Content)
		}
	}
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(content) {
		t.Errorf("last chunk ends at %d, want %d", last.EndOffset, len(content))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset > chunks[i-1].EndOffset {
			t.Errorf("gap between chunk %d (ends %d) and chunk %d (starts %d)",
				i-1, chunks[i-1].EndOffset, i, chunks[i].StartOffset)
		}
		if chunks[i].StartOffset < chunks[i-1].StartOffset {
			t.Errorf("chunk %d start regressed: %d < %d", i, chunks[i].StartOffset, chunks[i-1].StartOffset)
		}
	}
}

func TestSplitCoverage(t *testing.T) {
	c := New(Config{MaxChunkSize: 60, ChunkOverlap: 12, MinDocumentSize: 10})
	contents := map[string]string{
		"prose": "The quick brown fox jumps over the lazy dog. " +
			"Pack my box with five dozen liquor jugs. " +
			"How vexingly quick daft zebras jump! " +
			"Sphinx of black quartz, judge my vow.",
		"lines":         numbered(18, "line number %d of the list\n"),
		"paragraphs":    numbered(10, "paragraph %d with alpha beta gamma delta words.\n\n"),
		"no separators": numbered(100, "a%d"),
		"cjk":           numbered(12, "第%d天天气很好。我们出去散步。"),
	}
	for name, content := range contents {
		t.Run(name, func(t *testing.T) {
			checkCoverage(t, content, c.Split(content))
		})
	}
}

func TestSplitOverlapBound(t *testing.T) {
	overlap := 12
	c := New(Config{MaxChunkSize: 60, ChunkOverlap: overlap, MinDocumentSize: 10})
	content := numbered(12, "note %d lists one two three four five six seven. ")

	chunks := c.Split(content)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset >= chunks[i-1].EndOffset {
			continue
		}
		shared := content[chunks[i].StartOffset:chunks[i-1].EndOffset]
		if n := utf8.RuneCountInString(shared); n > overlap {
			t.Errorf("chunks %d/%d share %d runes, overlap limit %d", i-1, i, n, overlap)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := New(Config{MaxChunkSize: 70, ChunkOverlap: 15, MinDocumentSize: 10})
	content := strings.Repeat("some repeating note text with words. ", 20)

	a := c.Split(content)
	b := c.Split(content)
	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitCharacterFallback(t *testing.T) {
	c := New(Config{MaxChunkSize: 50, ChunkOverlap: 10, MinDocumentSize: 10})
	content := numbered(70, "a%d") // no separator divides this

	chunks := c.Split(content)
	if len(chunks) < 3 {
		t.Fatalf("expected fixed-width slicing to produce several chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Content); n > 50 {
			t.Errorf("chunk %d has %d runes, max 50", ch.Index, n)
		}
	}
	checkCoverage(t, content, chunks)
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	if c.cfg.MaxChunkSize != 1000 || c.cfg.ChunkOverlap != 200 || c.cfg.MinDocumentSize != 500 {
		t.Errorf("defaults = %+v", c.cfg)
	}
	// Overlap must stay below the chunk size.
	c = New(Config{MaxChunkSize: 100, ChunkOverlap: 150})
	if c.cfg.ChunkOverlap >= c.cfg.MaxChunkSize {
		t.Errorf("overlap %d not clamped below max %d", c.cfg.ChunkOverlap, c.cfg.MaxChunkSize)
	}
}
