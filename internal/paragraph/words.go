package paragraph

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// wordRE matches a word: a run of letters or digits, optionally joined by
// apostrophes ("don't", "runner’s").
var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// WordCount returns the number of words in s.
func WordCount(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return len(wordRE.FindAllStringIndex(s, -1))
}

// wordsBefore returns the number of words that start before byte offset pos.
func wordsBefore(s string, pos int) int {
	n := 0
	for _, loc := range wordRE.FindAllStringIndex(s, -1) {
		if loc[0] >= pos {
			break
		}
		n++
	}
	return n
}

// Words returns the case-folded words of s in order.
func Words(s string) []string {
	caser := cases.Fold()
	found := wordRE.FindAllString(s, -1)
	out := make([]string, 0, len(found))
	for _, w := range found {
		out = append(out, caser.String(w))
	}
	return out
}

// KeywordOverlap counts the distinct words of keyword that also appear in
// text. Matching is case-insensitive.
func KeywordOverlap(text, keyword string) int {
	present := make(map[string]bool)
	for _, w := range Words(text) {
		present[w] = true
	}

	seen := make(map[string]bool)
	n := 0
	for _, w := range Words(keyword) {
		if seen[w] {
			continue
		}
		seen[w] = true
		if present[w] {
			n++
		}
	}
	return n
}
