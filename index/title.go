package index

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Converted documents (PDF, DOCX, plain text) have no markdown headings,
// but their first lines often carry a real title in one of a few
// recognizable shapes: an uppercase line, a numbered section, or a short
// title-case line.
var (
	numberedRe = regexp.MustCompile(`^(?:\d+\.)+\d*\s+(\S.*)$`)
	labelledRe = regexp.MustCompile(`(?i)^(?:chapter|section|part|appendix)\s+[A-Z0-9IVXLCDM]+[.:]?\s*(.*)$`)
)

const maxTitleLen = 80

// plainTitle scans the first few non-empty lines of extracted text for a
// line that looks like a heading and returns it cleaned up, or "" when
// nothing qualifies. Lines of ordinary prose never qualify, so documents
// that simply start mid-sentence keep their filename title.
func plainTitle(body string) string {
	seen := 0
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if seen++; seen > 5 {
			return ""
		}
		if t, ok := titleLine(line); ok {
			return t
		}
	}
	return ""
}

func titleLine(line string) (string, bool) {
	if utf8.RuneCountInString(line) > maxTitleLen {
		return "", false
	}
	// Prose indicators: sentence-ending punctuation disqualifies a line.
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") || strings.HasSuffix(line, ";") {
		return "", false
	}

	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := labelledRe.FindStringSubmatch(line); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t, true
		}
		return line, true
	}
	if isUpperLine(line) {
		return line, true
	}
	if isTitleCase(line) {
		return line, true
	}
	return "", false
}

// isUpperLine reports whether the line is uppercase letters, digits, and
// punctuation with at least five letters, the all-caps heading style of
// scanned and legal documents.
func isUpperLine(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 5
}

// isTitleCase reports whether most words start with an uppercase letter,
// with short connectives (of, the, and...) allowed in between. At least
// two words are required so a stray capitalized word does not qualify.
func isTitleCase(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 12 {
		return false
	}
	capped := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capped++
		} else if len(w) > 3 {
			return false
		}
	}
	return capped >= (len(words)+1)/2
}
