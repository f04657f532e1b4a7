package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/quillforge/lodestone/normalize"
)

// Snippet window geometry, in bytes of whitespace-free text around a match.
const (
	snippetBefore = 80
	snippetAfter  = 140
)

// maxMatchesPerNeedle bounds the candidate windows per search term.
const maxMatchesPerNeedle = 16

// Snippet extracts the best highlight window from content for a query.
// The content is folded and whitespace-squeezed with an index map back to
// the original bytes; candidate windows anchor at every occurrence of the
// full query phrase and of each keyword, and the window containing the
// most distinct keywords wins, shorter winning ties. The returned text is
// the original slice for the winning window, with highlight spans as byte
// ranges relative to it.
func Snippet(content, query string) (string, []Span) {
	if content == "" {
		return "", nil
	}

	compact, idx := normalize.Compact(content)
	if compact == "" {
		return "", nil
	}

	keywords := normalize.Keywords(query)
	phrase, _ := normalize.Compact(query)

	// The full phrase first, then the individual keywords.
	needles := make([]string, 0, len(keywords)+1)
	if phrase != "" {
		needles = append(needles, phrase)
	}
	for _, kw := range keywords {
		if kw != phrase {
			needles = append(needles, kw)
		}
	}

	type window struct{ start, end int }

	clamp := func(w window) window {
		if w.start < 0 {
			w.start = 0
		}
		if w.end > len(compact) {
			w.end = len(compact)
		}
		for w.start > 0 && !utf8.RuneStart(compact[w.start]) {
			w.start--
		}
		for w.end < len(compact) && !utf8.RuneStart(compact[w.end]) {
			w.end++
		}
		return w
	}

	best := window{}
	bestCount := -1
	consider := func(w window) {
		text := compact[w.start:w.end]
		count := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				count++
			}
		}
		if count > bestCount ||
			(count == bestCount && w.end-w.start < best.end-best.start) {
			bestCount = count
			best = w
		}
	}

	found := false
	for _, needle := range needles {
		for _, pos := range occurrences(compact, needle, maxMatchesPerNeedle) {
			found = true
			consider(clamp(window{pos - snippetBefore, pos + len(needle) + snippetAfter}))
		}
	}
	if !found {
		// Nothing matched in this text; emit the leading window unhighlighted.
		best = clamp(window{0, snippetBefore + snippetAfter})
	}

	origStart := idx[best.start]
	snippet := content[origStart:origEndOffset(content, idx, best.end)]
	if !found {
		return snippet, nil
	}

	var spans []Span
	for _, needle := range needles {
		for _, pos := range occurrences(compact[best.start:best.end], needle, maxMatchesPerNeedle) {
			ms := best.start + pos
			me := ms + len(needle)
			spans = append(spans, Span{
				Start: idx[ms] - origStart,
				End:   origEndOffset(content, idx, me) - origStart,
			})
		}
	}
	return snippet, mergeSpans(spans)
}

// origEndOffset converts an end-exclusive offset in the squeezed text into
// an end-exclusive offset in the original, landing after the last rune of
// the match rather than before the whitespace-separated next one.
func origEndOffset(content string, idx []int, compactEnd int) int {
	if compactEnd == 0 {
		return 0
	}
	start := idx[compactEnd-1]
	_, size := utf8.DecodeRuneInString(content[start:])
	return start + size
}

// occurrences returns up to max non-overlapping byte offsets of needle.
func occurrences(haystack, needle string, max int) []int {
	if needle == "" {
		return nil
	}
	var out []int
	from := 0
	for len(out) < max {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			break
		}
		out = append(out, from+i)
		from += i + len(needle)
	}
	return out
}

// mergeSpans sorts spans and merges overlaps so highlights never nest.
func mergeSpans(spans []Span) []Span {
	if len(spans) <= 1 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
