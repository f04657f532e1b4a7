// Package normalize provides the language-agnostic text normalization shared
// by indexing and querying: diacritic folding, keyword extraction, and a
// whitespace-stripped form with an offset map used for snippet extraction.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldChain builds the diacritic-removal transform: decompose, drop combining
// marks, recompose. Transformers carry state, so each call gets a fresh chain.
func foldChain() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Fold returns the diacritic-insensitive, lowercased form of s.
// "Résumé" and "resume" fold to the same string.
func Fold(s string) string {
	out, _, err := transform.String(foldChain(), s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Keywords extracts the distinct search keywords of s, in first-seen order.
// Text is folded first; keywords are maximal runs of letters and digits.
// Runs of Han ideographs are emitted one character per keyword so CJK
// queries and content match without a word segmenter.
func Keywords(s string) []string {
	folded := Fold(s)
	seen := make(map[string]struct{})
	var out []string

	add := func(w string) {
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	var word []rune
	flush := func() {
		if len(word) > 0 {
			add(string(word))
			word = word[:0]
		}
	}
	for _, r := range folded {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			add(string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// FTSText prepares text for full-text index storage: folded, with Han
// ideographs space-separated so the unicode61 tokenizer sees one token per
// character instead of one token per unbroken CJK run.
func FTSText(s string) string {
	folded := Fold(s)
	if !strings.ContainsFunc(folded, isHan) {
		return folded
	}
	var b strings.Builder
	b.Grow(len(folded) + len(folded)/2)
	prevHan := false
	for _, r := range folded {
		han := isHan(r)
		if han && b.Len() > 0 && !endsWithSpace(&b) {
			b.WriteByte(' ')
		} else if prevHan && !han && !unicode.IsSpace(r) && b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prevHan = han
	}
	return b.String()
}

func isHan(r rune) bool { return unicode.Is(unicode.Han, r) }

func endsWithSpace(b *strings.Builder) bool {
	s := b.String()
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

// Compact returns s folded with all whitespace removed, plus an index map
// from each byte of the compact form back to the byte offset in s of the
// originating rune. The map carries one trailing entry equal to len(s) so a
// compact end offset translates directly to an exclusive original offset.
func Compact(s string) (string, []int) {
	var b strings.Builder
	idx := make([]int, 0, len(s)+1)
	for i, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		for _, fr := range foldRune(r) {
			n := utf8.RuneLen(fr)
			b.WriteRune(fr)
			for k := 0; k < n; k++ {
				idx = append(idx, i)
			}
		}
	}
	idx = append(idx, len(s))
	return b.String(), idx
}

// foldRune folds a single rune, which may expand or contract under
// decomposition.
func foldRune(r rune) []rune {
	out, _, err := transform.String(foldChain(), string(r))
	if err != nil {
		out = string(r)
	}
	return []rune(strings.ToLower(out))
}
