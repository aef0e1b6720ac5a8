package fallback

import (
	"regexp"
	"strings"
)

// sentenceEnd matches terminal punctuation followed by whitespace.
var sentenceEnd = regexp.MustCompile(`[.!?…]+["'”’)]*\s+`)

// sentences splits text into whitespace-normalized sentences.
func sentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

// changedSentences returns how many sentences differ between two texts.
// It counts sentences of after that do not appear in before and sentences
// of before that disappeared, and returns the larger number.
func changedSentences(before, after string) int {
	remaining := make(map[string]int)
	for _, s := range sentences(before) {
		remaining[s]++
	}

	added := 0
	for _, s := range sentences(after) {
		if remaining[s] > 0 {
			remaining[s]--
			continue
		}
		added++
	}

	removed := 0
	for _, n := range remaining {
		removed += n
	}
	return max(added, removed)
}
