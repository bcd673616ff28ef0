package search

import (
	"strings"
	"unicode/utf8"
)

// SnippetMaxChars bounds the snippet length (spec.md §4.6).
const SnippetMaxChars = 200

const snippetContext = 40

// HighlightRange is a [Start, End) byte range into the snippet (or full
// text, depending on call site) that should be highlighted. Ranges
// always fall on valid UTF-8 scalar boundaries.
type HighlightRange struct {
	Start int
	End   int
}

// firstMatch finds the lowest-position, case-insensitive occurrence of
// any term in text. Ties (same position) are broken by picking the
// first term in the supplied order, per "lowest position wins for ties".
func firstMatch(text string, terms []string) (pos, length int, found bool) {
	lower := strings.ToLower(text)
	bestPos := -1
	bestLen := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		idx := strings.Index(lower, strings.ToLower(term))
		if idx < 0 {
			continue
		}
		if bestPos == -1 || idx < bestPos {
			bestPos = idx
			bestLen = len(term)
		}
	}
	if bestPos == -1 {
		return 0, 0, false
	}
	return bestPos, bestLen, true
}

// snapToRuneBoundary moves i backward until it lands on a valid UTF-8
// scalar boundary (or 0).
func snapToRuneBoundary(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// snapForward moves i forward to the next valid scalar boundary.
func snapForward(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// BuildSnippet extracts a snippet around the first matched term (per
// firstMatch), ±40 chars of context, snapped to valid UTF-8 scalar
// boundaries, with a leading/trailing "…" when truncated, bounded to
// SnippetMaxChars. Returns ("", false) if no term matches.
func BuildSnippet(text string, terms []string) (string, bool) {
	pos, matchLen, found := firstMatch(text, terms)
	if !found {
		return "", false
	}

	start, end := pos, pos+matchLen
	for n := 0; n < snippetContext && start > 0; n++ {
		start = snapToRuneBoundary(text, start-1)
	}
	for n := 0; n < snippetContext && end < len(text); n++ {
		end = snapForward(text, end+1)
	}
	truncatedStart := start > 0
	truncatedEnd := end < len(text)

	start = snapToRuneBoundary(text, start)
	end = snapForward(text, end)

	snippet := text[start:end]
	if truncatedStart {
		snippet = "…" + snippet
	}
	if truncatedEnd {
		snippet = snippet + "…"
	}

	if utf8.RuneCountInString(snippet) > SnippetMaxChars {
		snippet = truncateRunes(snippet, SnippetMaxChars)
	}
	return snippet, true
}

func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

// HighlightRanges computes sorted, scalar-boundary-safe highlight ranges
// for every occurrence of every term in text, supporting overlapping
// adjacent matches (ranges are not merged, only sorted).
func HighlightRanges(text string, terms []string) []HighlightRange {
	lower := strings.ToLower(text)
	var ranges []HighlightRange
	for _, term := range terms {
		if term == "" {
			continue
		}
		lt := strings.ToLower(term)
		from := 0
		for {
			idx := strings.Index(lower[from:], lt)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(term)
			ranges = append(ranges, HighlightRange{Start: start, End: end})
			from = start + 1
			if from >= len(lower) {
				break
			}
		}
	}
	sortRanges(ranges)
	return ranges
}

func sortRanges(r []HighlightRange) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && (r[j-1].Start > r[j].Start || (r[j-1].Start == r[j].Start && r[j-1].End > r[j].End)); j-- {
			r[j-1], r[j] = r[j], r[j-1]
		}
	}
}
