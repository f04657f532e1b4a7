// Package chunker splits document content into overlapping, bounded-size
// chunks using recursive separator splitting. Chunks carry byte offsets into
// the original content so consumers can reconstruct or highlight source text.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls the chunking behaviour. Sizes are measured in runes so
// multi-byte scripts chunk at the same granularity as ASCII.
type Config struct {
	MaxChunkSize    int // Maximum runes per chunk.
	ChunkOverlap    int // Runes shared between consecutive chunks.
	MinDocumentSize int // Documents at or below this size stay one chunk.
}

// Chunk is one bounded slice of a document. StartOffset/EndOffset are byte
// offsets into the original content; Content is always the literal substring
// content[StartOffset:EndOffset].
type Chunk struct {
	Index       int
	Content     string
	StartOffset int
	EndOffset   int
}

// separators is the ordered split candidates: paragraph break, line break,
// sentence enders for several scripts, word break, and the empty string as
// the fixed-width character fallback.
var separators = []string{"\n\n", "\n", ". ", "。", "！", "？", "! ", "? ", "; ", " ", ""}

// Chunker splits content according to a Config.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		cfg.ChunkOverlap = cfg.MaxChunkSize / 5
	}
	if cfg.MinDocumentSize <= 0 {
		cfg.MinDocumentSize = 500
	}
	return &Chunker{cfg: cfg}
}

// Split divides content into ordered chunks. Content at or below
// MinDocumentSize yields a single chunk spanning the whole document.
// Offsets are located by forward search from the previous chunk's start, so
// the search position never regresses even though neighbours overlap.
func (c *Chunker) Split(content string) []Chunk {
	if content == "" {
		return nil
	}
	if utf8.RuneCountInString(content) <= c.cfg.MinDocumentSize {
		return []Chunk{{Index: 0, Content: content, StartOffset: 0, EndOffset: len(content)}}
	}

	segments := c.split(content, 0)
	chunks := make([]Chunk, 0, len(segments))
	searchFrom := 0
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		start := searchFrom
		if idx := strings.Index(content[searchFrom:], seg); idx >= 0 {
			start = searchFrom + idx
		}
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Content:     seg,
			StartOffset: start,
			EndOffset:   start + len(seg),
		})
		// Every later chunk starts strictly after this one, so advancing the
		// floor keeps the search monotonic even for repetitive content.
		searchFrom = start + 1
	}
	return chunks
}

// split recursively divides text using the separator list starting at sepIdx.
// The first separator that actually divides the text wins; if none does, the
// text is sliced at fixed rune width.
func (c *Chunker) split(text string, sepIdx int) []string {
	if utf8.RuneCountInString(text) <= c.cfg.MaxChunkSize {
		return []string{text}
	}
	for ; sepIdx < len(separators); sepIdx++ {
		sep := separators[sepIdx]
		if sep == "" {
			break
		}
		pieces := splitAfter(text, sep)
		if len(pieces) > 1 {
			return c.accumulate(pieces, sepIdx)
		}
	}
	return c.sliceFixed(text)
}

// accumulate merges split pieces into chunks: pieces are appended to a
// running buffer until the next piece would push it past MaxChunkSize, at
// which point the buffer is emitted and a new one is seeded with the trailing
// overlap of the previous buffer. Buffers still over size (a single oversize
// piece) are re-split with the next separator.
func (c *Chunker) accumulate(pieces []string, sepIdx int) []string {
	var segments []string
	var buf strings.Builder
	bufRunes := 0

	emit := func() {
		seg := buf.String()
		if utf8.RuneCountInString(seg) > c.cfg.MaxChunkSize {
			segments = append(segments, c.split(seg, sepIdx+1)...)
		} else {
			segments = append(segments, seg)
		}
		tail := c.overlapTail(seg)
		buf.Reset()
		buf.WriteString(tail)
		bufRunes = utf8.RuneCountInString(tail)
	}

	for _, p := range pieces {
		if p == "" {
			continue
		}
		pRunes := utf8.RuneCountInString(p)
		if buf.Len() > 0 && bufRunes+pRunes > c.cfg.MaxChunkSize {
			emit()
		}
		buf.WriteString(p)
		bufRunes += pRunes
	}
	if buf.Len() > 0 {
		seg := buf.String()
		if utf8.RuneCountInString(seg) > c.cfg.MaxChunkSize {
			segments = append(segments, c.split(seg, sepIdx+1)...)
		} else {
			segments = append(segments, seg)
		}
	}
	return segments
}

// overlapTail returns the trailing ChunkOverlap runes of seg, advanced to the
// first word boundary inside the window so the overlap starts on a whole
// word when one is available. Segments no longer than the overlap window get
// no tail: the overlap must be a strict suffix or consecutive chunks could
// start at the same offset.
func (c *Chunker) overlapTail(seg string) string {
	n := c.cfg.ChunkOverlap
	if n <= 0 {
		return ""
	}
	r := []rune(seg)
	if len(r) <= n {
		return ""
	}
	tail := string(r[len(r)-n:])
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 && idx+1 < len(tail) {
		return tail[idx+1:]
	}
	return tail
}

// sliceFixed cuts text into MaxChunkSize rune windows advancing by
// MaxChunkSize-ChunkOverlap runes, the character-level fallback when no
// separator divides the text.
func (c *Chunker) sliceFixed(text string) []string {
	r := []rune(text)
	width := c.cfg.MaxChunkSize
	step := width - c.cfg.ChunkOverlap
	if step <= 0 {
		step = width
	}
	var segments []string
	for i := 0; i < len(r); i += step {
		end := i + width
		if end > len(r) {
			end = len(r)
		}
		segments = append(segments, string(r[i:end]))
		if end == len(r) {
			break
		}
	}
	return segments
}

// splitAfter splits text on sep keeping the separator attached to the
// preceding piece, so concatenating the pieces reproduces text exactly.
func splitAfter(text, sep string) []string {
	pieces := strings.SplitAfter(text, sep)
	out := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
