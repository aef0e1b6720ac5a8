// Package strip removes internal links from HTML content.
//
// Stripping unwraps every <a> element whose href is internal: the start and
// end tags are dropped and the anchor text stays in place. External links
// and all other markup are emitted byte for byte, so stripping content that
// was produced by the injector restores the content it started from.
package strip

import (
	"strings"

	"golang.org/x/net/html"
)

// Predicate reports whether an href is an internal link.
type Predicate interface {
	IsInternal(href string) bool
}

// Result is the outcome of stripping a document.
type Result struct {
	// HTML is the stripped document.
	HTML string

	// Removed is the number of anchors that were unwrapped.
	Removed int

	// Hrefs lists the hrefs of the removed anchors in document order.
	Hrefs []string
}

// Stripper unwraps internal links.
type Stripper struct {
	predicate Predicate
}

// New creates a Stripper using the given internal-link predicate.
func New(predicate Predicate) *Stripper {
	return &Stripper{predicate: predicate}
}

// Strip returns s with every internal link unwrapped.
func (s *Stripper) Strip(content string) string {
	return s.StripDetailed(content).HTML
}

// StripDetailed is like Strip but also reports which anchors were removed.
func (s *Stripper) StripDetailed(content string) Result {
	z := html.NewTokenizer(strings.NewReader(content))

	var out strings.Builder
	out.Grow(len(content))

	var res Result
	// open mirrors the currently open <a> elements; true means the element
	// is internal and its end tag must be dropped too.
	var open []bool

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			out.Write(z.Raw())
			break
		}
		raw := string(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				out.WriteString(raw)
				continue
			}
			href, ok := hrefAttr(z, hasAttr)
			internal := ok && s.predicate.IsInternal(href)
			if internal {
				res.Removed++
				res.Hrefs = append(res.Hrefs, href)
			} else {
				out.WriteString(raw)
			}
			if tt == html.StartTagToken {
				open = append(open, internal)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "a" || len(open) == 0 {
				out.WriteString(raw)
				continue
			}
			internal := open[len(open)-1]
			open = open[:len(open)-1]
			if !internal {
				out.WriteString(raw)
			}

		default:
			out.WriteString(raw)
		}
	}

	res.HTML = out.String()
	return res
}

func hrefAttr(z *html.Tokenizer, hasAttr bool) (string, bool) {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "href" {
			return string(val), true
		}
	}
	return "", false
}
