package paragraph

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// normalizePattern trims the pattern and collapses inner whitespace runs to
// a single space. A space in the pattern matches any non-empty whitespace
// run in the text.
func normalizePattern(pattern string) string {
	return strings.Join(strings.Fields(pattern), " ")
}

// indexFold returns the byte range [start, end) of the first occurrence of
// pattern in s, compared case-insensitively. Typographic apostrophes match
// ASCII ones. It returns -1, -1 when there is no occurrence.
func indexFold(s, pattern string) (int, int) {
	pat := normalizePattern(pattern)
	if pat == "" {
		return -1, -1
	}
	for i := 0; i < len(s); {
		if end, ok := matchAt(s, i, pat); ok {
			return i, end
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

func matchAt(s string, i int, pat string) (int, bool) {
	j := i
	for k := 0; k < len(pat); {
		pr, psize := utf8.DecodeRuneInString(pat[k:])
		k += psize
		if j >= len(s) {
			return 0, false
		}

		if pr == ' ' {
			n := 0
			for j < len(s) {
				r, size := utf8.DecodeRuneInString(s[j:])
				if !unicode.IsSpace(r) {
					break
				}
				j += size
				n++
			}
			if n == 0 {
				return 0, false
			}
			continue
		}

		sr, ssize := utf8.DecodeRuneInString(s[j:])
		if !equalFold(sr, pr) {
			return 0, false
		}
		j += ssize
	}
	return j, true
}

// equalFold reports whether a and b are equal under simple Unicode case
// folding.
func equalFold(a, b rune) bool {
	a, b = normalizeQuote(a), normalizeQuote(b)
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func normalizeQuote(r rune) rune {
	switch r {
	case '’', '‘', 'ʼ':
		return '\''
	default:
		return r
	}
}

// EqualAnchorText reports whether two anchor texts are the same under the
// matching rules used by the injector.
func EqualAnchorText(a, b string) bool {
	a, b = normalizePattern(a), normalizePattern(b)
	if a == "" || b == "" {
		return a == b
	}
	start, end := indexFold(a, b)
	return start == 0 && end == len(a)
}
