package paragraph

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Errors returned when checking HTML fragments.
var (
	// ErrNotParagraph is returned when a fragment is not exactly one
	// paragraph element.
	ErrNotParagraph = errors.New("fragment is not a single paragraph")

	// ErrMalformed is returned when a fragment has unbalanced tags.
	ErrMalformed = errors.New("malformed HTML fragment")
)

// voidElements never have an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// WellFormed checks that every non-void start tag in s is closed in order.
// Unlike Parse, it is strict: it is used to vet HTML produced by the
// rewriting service before it replaces trusted content.
func WellFormed(s string) error {
	z := html.NewTokenizer(strings.NewReader(s))
	var stack []string

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if len(z.Raw()) > 0 {
				return fmt.Errorf("%w: truncated tag at end of input", ErrMalformed)
			}
			if len(stack) > 0 {
				return fmt.Errorf("%w: unclosed <%s>", ErrMalformed, stack[len(stack)-1])
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); !voidElements[tag] {
				stack = append(stack, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}
			if len(stack) == 0 || stack[len(stack)-1] != tag {
				return fmt.Errorf("%w: unexpected </%s>", ErrMalformed, tag)
			}
			stack = stack[:len(stack)-1]
		}
	}
}

// ParseFragment parses s as a single paragraph. Surrounding whitespace is
// ignored; any other content outside the <p> element is an error.
func ParseFragment(s string) (*Paragraph, error) {
	trimmed := strings.TrimSpace(s)
	if err := WellFormed(trimmed); err != nil {
		return nil, err
	}

	doc := Parse(trimmed)
	if doc.Len() != 1 {
		return nil, fmt.Errorf("%w: found %d paragraphs", ErrNotParagraph, doc.Len())
	}
	for _, seg := range doc.segments {
		if seg.para == nil && strings.TrimSpace(seg.raw) != "" {
			return nil, fmt.Errorf("%w: content outside the paragraph", ErrNotParagraph)
		}
	}
	return doc.paragraphs[0], nil
}
