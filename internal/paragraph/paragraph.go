package paragraph

import (
	"html"
	"strings"
	"unicode/utf8"
)

// nodeKind classifies the tokens inside a paragraph.
type nodeKind int

const (
	// tagNode is any tag, comment or doctype token.
	tagNode nodeKind = iota

	// textNode is a run of character data.
	textNode
)

// node is one token of a paragraph with its raw bytes.
type node struct {
	kind nodeKind

	// raw is the token exactly as it appeared in the source.
	raw string

	// rawOffset is the byte offset of raw inside the paragraph's raw HTML.
	rawOffset int

	// excluded is true for text inside an anchor or another zone that must
	// not receive links (script, style, code).
	excluded bool

	// text is the decoded character data (text nodes only).
	text string

	// textOffset is the byte offset of text inside Paragraph.Text().
	textOffset int

	// rawPos maps a byte offset in text to a byte offset in raw.
	// It has len(text)+1 entries.
	rawPos []int

	// boundary marks text offsets that fall on an entity boundary, so a
	// match never splits "&amp;" or a numeric reference.
	boundary []bool
}

// Anchor is an existing <a> element inside a paragraph.
type Anchor struct {
	// Href is the decoded href attribute.
	Href string

	// Text is the anchor's visible text.
	Text string

	// Start and End are byte offsets of the anchor text inside the
	// paragraph text.
	Start, End int

	// StartWord and EndWord delimit the words covered by the anchor:
	// words [StartWord, EndWord) of the paragraph.
	StartWord, EndWord int
}

// Paragraph is one addressable <p> element of a Document.
// A Paragraph is immutable.
type Paragraph struct {
	index   int
	raw     string
	nodes   []node
	text    string
	anchors []Anchor
}

// Index returns the 1-based position of the paragraph in its document.
func (p *Paragraph) Index() int {
	return p.index
}

// Raw returns the paragraph's HTML exactly as it appears in the document.
func (p *Paragraph) Raw() string {
	return p.raw
}

// Text returns the decoded text of the paragraph, including anchor text.
func (p *Paragraph) Text() string {
	return p.text
}

// Anchors returns the anchors contained in the paragraph in document order.
func (p *Paragraph) Anchors() []Anchor {
	out := make([]Anchor, len(p.anchors))
	copy(out, p.anchors)
	return out
}

// LinkCount returns the number of anchors in the paragraph.
func (p *Paragraph) LinkCount() int {
	return len(p.anchors)
}

// WordCount returns the number of words in the paragraph text.
func (p *Paragraph) WordCount() int {
	return WordCount(p.text)
}

// Match is an occurrence of anchor text inside a paragraph.
type Match struct {
	// Text is the matched substring with its original casing.
	Text string

	// Start and End are byte offsets inside the paragraph text.
	Start, End int

	// StartWord and EndWord delimit the words covered by the match.
	StartWord, EndWord int

	node int
}

// Find returns the first occurrence of anchor in the paragraph, compared
// case-insensitively. Occurrences inside excluded zones (existing anchors,
// script, style, code) and occurrences spanning inline tags are skipped.
func (p *Paragraph) Find(anchor string) (Match, bool) {
	for i, n := range p.nodes {
		if n.kind != textNode || n.excluded {
			continue
		}

		offset := 0
		for offset < len(n.text) {
			start, end := indexFold(n.text[offset:], anchor)
			if start < 0 {
				break
			}
			start += offset
			end += offset
			if n.boundary[start] && n.boundary[end] {
				s := n.textOffset + start
				e := n.textOffset + end
				return Match{
					Text:      n.text[start:end],
					Start:     s,
					End:       e,
					StartWord: wordsBefore(p.text, s),
					EndWord:   wordsBefore(p.text, e),
					node:      i,
				}, true
			}
			_, size := utf8.DecodeRuneInString(n.text[start:])
			offset = start + size
		}
	}
	return Match{}, false
}

// Wrap returns a new paragraph in which the matched text is wrapped in an
// anchor pointing to href. The bytes of the matched text are kept as-is, so
// stripping the anchor later restores the original paragraph exactly.
func (p *Paragraph) Wrap(m Match, href string) *Paragraph {
	n := p.nodes[m.node]
	rs := n.rawOffset + n.rawPos[m.Start-n.textOffset]
	re := n.rawOffset + n.rawPos[m.End-n.textOffset]

	var b strings.Builder
	b.Grow(len(p.raw) + len(href) + 15)
	b.WriteString(p.raw[:rs])
	b.WriteString(`<a href="`)
	b.WriteString(html.EscapeString(href))
	b.WriteString(`">`)
	b.WriteString(p.raw[rs:re])
	b.WriteString("</a>")
	b.WriteString(p.raw[re:])

	return reparse(b.String(), p.index)
}

// reparse builds a paragraph from raw HTML that is known to start with <p>.
func reparse(raw string, index int) *Paragraph {
	doc := Parse(raw)
	if doc.Len() == 0 {
		return &Paragraph{index: index, raw: raw}
	}
	np := doc.paragraphs[0]
	np.index = index
	return np
}

// decodeText decodes character references in raw text and returns the
// decoded text together with its offset maps.
//
// We decode manually instead of using the tokenizer's Text() because the
// raw bytes must stay addressable: a match found in decoded text has to be
// wrapped at the matching raw position without re-escaping anything.
func decodeText(raw string) (string, []int, []bool) {
	var b strings.Builder
	b.Grow(len(raw))
	pos := make([]int, 0, len(raw)+1)
	boundary := make([]bool, 0, len(raw)+1)

	for i := 0; i < len(raw); {
		if raw[i] == '&' {
			limit := i + 40
			if limit > len(raw) {
				limit = len(raw)
			}
			if semi := strings.IndexByte(raw[i:limit], ';'); semi > 1 {
				ref := raw[i : i+semi+1]
				if dec := html.UnescapeString(ref); dec != ref {
					for k := 0; k < len(dec); k++ {
						pos = append(pos, i)
						boundary = append(boundary, k == 0)
					}
					b.WriteString(dec)
					i += len(ref)
					continue
				}
			}
		}
		pos = append(pos, i)
		boundary = append(boundary, true)
		b.WriteByte(raw[i])
		i++
	}
	pos = append(pos, len(raw))
	boundary = append(boundary, true)

	return b.String(), pos, boundary
}
