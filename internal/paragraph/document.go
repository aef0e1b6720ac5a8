package paragraph

import (
	"strings"

	"golang.org/x/net/html"
)

// containerTags are elements whose descendants never form scannable
// paragraphs: list items, headings and anchors.
var containerTags = map[string]bool{
	"li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"a": true,
}

// listTags close every list item left open inside them.
var listTags = map[string]bool{"ul": true, "ol": true, "menu": true}

// excludedInlineTags are elements inside a paragraph whose text must not
// receive links.
var excludedInlineTags = map[string]bool{
	"a":        true,
	"script":   true,
	"style":    true,
	"code":     true,
	"noscript": true,
	"button":   true,
}

// closesParagraph lists elements whose start or end tag implicitly closes an
// open <p>, following the HTML parsing rules for block content.
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "details": true, "div": true, "dl": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "html": true, "li": true, "main": true,
	"menu": true, "nav": true, "ol": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// segment is either a paragraph or a run of raw non-paragraph HTML.
type segment struct {
	raw  string
	para *Paragraph
}

// Document is an immutable parsed HTML document.
type Document struct {
	segments   []segment
	paragraphs []*Paragraph
}

// Parse tokenizes s into a Document. It never fails: malformed markup is
// kept verbatim, and anything that cannot be recognized as a paragraph stays
// outside the scan surface.
func Parse(s string) *Document {
	z := html.NewTokenizer(strings.NewReader(s))

	doc := &Document{}
	var outside strings.Builder
	var cur *builder
	depth := make(map[string]int)

	flushOutside := func() {
		if outside.Len() > 0 {
			doc.segments = append(doc.segments, segment{raw: outside.String()})
			outside.Reset()
		}
	}
	flushParagraph := func() {
		p := cur.build(len(doc.paragraphs) + 1)
		doc.segments = append(doc.segments, segment{raw: p.raw, para: p})
		doc.paragraphs = append(doc.paragraphs, p)
		cur = nil
	}
	blocked := func() bool {
		for _, n := range depth {
			if n > 0 {
				return true
			}
		}
		return false
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF is the only error a strings.Reader can produce. Input
			// that ends inside a tag leaves the partial tag in Raw.
			if rest := string(z.Raw()); rest != "" {
				if cur != nil {
					cur.add(tagNode, rest)
				} else {
					outside.WriteString(rest)
				}
			}
			break
		}

		// Raw must be copied before TagName, which lower-cases in place.
		raw := string(z.Raw())

		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)

			if cur != nil && (tag == "p" || closesParagraph[tag]) {
				flushParagraph()
			}
			if cur != nil {
				cur.startTag(raw, tag, attrHref(z, hasAttr))
				continue
			}
			if tag == "p" && !blocked() {
				flushOutside()
				cur = newBuilder(raw)
				continue
			}
			if containerTags[tag] {
				depth[tag]++
			}
			outside.WriteString(raw)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if cur != nil {
				if tag == "p" {
					cur.add(tagNode, raw)
					flushParagraph()
					continue
				}
				if !closesParagraph[tag] {
					cur.endTag(raw, tag)
					continue
				}
				flushParagraph()
			}
			if containerTags[tag] && depth[tag] > 0 {
				depth[tag]--
			}
			if listTags[tag] {
				// Unclosed <li> elements end with their list.
				depth["li"] = 0
			}
			outside.WriteString(raw)

		case html.TextToken:
			if cur != nil {
				cur.text(raw)
				continue
			}
			outside.WriteString(raw)

		default:
			// Self-closing tags, comments and doctypes.
			if cur != nil {
				cur.add(tagNode, raw)
				continue
			}
			outside.WriteString(raw)
		}
	}

	if cur != nil {
		flushParagraph()
	}
	flushOutside()

	return doc
}

// attrHref returns the href attribute of the current start tag.
func attrHref(z *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "href" {
			return string(val)
		}
	}
	return ""
}

// Len returns the number of paragraphs.
func (d *Document) Len() int {
	return len(d.paragraphs)
}

// Paragraphs returns the paragraphs in document order.
func (d *Document) Paragraphs() []*Paragraph {
	out := make([]*Paragraph, len(d.paragraphs))
	copy(out, d.paragraphs)
	return out
}

// Paragraph returns the paragraph with the given 1-based index.
func (d *Document) Paragraph(index int) (*Paragraph, bool) {
	if index < 1 || index > len(d.paragraphs) {
		return nil, false
	}
	return d.paragraphs[index-1], true
}

// Render reconstructs the HTML document. Non-paragraph segments are emitted
// exactly as parsed.
func (d *Document) Render() string {
	var b strings.Builder
	for _, seg := range d.segments {
		if seg.para != nil {
			b.WriteString(seg.para.raw)
			continue
		}
		b.WriteString(seg.raw)
	}
	return b.String()
}

// WithParagraph returns a new Document in which the paragraph at index is
// replaced by p. The receiver is left unchanged. The replacement takes over
// the index of the paragraph it replaces.
func (d *Document) WithParagraph(index int, p *Paragraph) *Document {
	if index < 1 || index > len(d.paragraphs) || p == nil {
		return d
	}

	replaced := *p
	replaced.index = index

	out := &Document{
		segments:   make([]segment, len(d.segments)),
		paragraphs: make([]*Paragraph, len(d.paragraphs)),
	}
	copy(out.segments, d.segments)
	copy(out.paragraphs, d.paragraphs)

	old := d.paragraphs[index-1]
	for i, seg := range out.segments {
		if seg.para == old {
			out.segments[i] = segment{raw: replaced.raw, para: &replaced}
			break
		}
	}
	out.paragraphs[index-1] = &replaced

	return out
}

// builder accumulates the tokens of an open paragraph.
type builder struct {
	raw     strings.Builder
	textBuf strings.Builder
	nodes   []node
	anchors []Anchor

	// open tracks excluded inline elements currently open.
	open map[string]int

	// anchorStack holds indexes into anchors for open <a> elements.
	anchorStack []int
}

func newBuilder(openTag string) *builder {
	b := &builder{open: make(map[string]int)}
	b.add(tagNode, openTag)
	return b
}

func (b *builder) add(kind nodeKind, raw string) {
	b.nodes = append(b.nodes, node{kind: kind, raw: raw, rawOffset: b.raw.Len()})
	b.raw.WriteString(raw)
}

func (b *builder) excluded() bool {
	for _, n := range b.open {
		if n > 0 {
			return true
		}
	}
	return false
}

func (b *builder) startTag(raw, tag, href string) {
	b.add(tagNode, raw)
	if !excludedInlineTags[tag] {
		return
	}
	b.open[tag]++
	if tag == "a" {
		b.anchors = append(b.anchors, Anchor{Href: href, Start: b.textBuf.Len()})
		b.anchorStack = append(b.anchorStack, len(b.anchors)-1)
	}
}

func (b *builder) endTag(raw, tag string) {
	b.add(tagNode, raw)
	if !excludedInlineTags[tag] || b.open[tag] == 0 {
		return
	}
	b.open[tag]--
	if tag == "a" && len(b.anchorStack) > 0 {
		i := b.anchorStack[len(b.anchorStack)-1]
		b.anchorStack = b.anchorStack[:len(b.anchorStack)-1]
		b.anchors[i].End = b.textBuf.Len()
	}
}

func (b *builder) text(raw string) {
	text, pos, boundary := decodeText(raw)
	b.nodes = append(b.nodes, node{
		kind:       textNode,
		raw:        raw,
		rawOffset:  b.raw.Len(),
		excluded:   b.excluded(),
		text:       text,
		textOffset: b.textBuf.Len(),
		rawPos:     pos,
		boundary:   boundary,
	})
	b.raw.WriteString(raw)
	b.textBuf.WriteString(text)
}

func (b *builder) build(index int) *Paragraph {
	text := b.textBuf.String()

	// Anchors left open by malformed markup extend to the end of the text.
	for _, i := range b.anchorStack {
		b.anchors[i].End = len(text)
	}
	for i := range b.anchors {
		a := &b.anchors[i]
		a.Text = text[a.Start:a.End]
		a.StartWord = wordsBefore(text, a.Start)
		a.EndWord = wordsBefore(text, a.End)
	}

	return &Paragraph{
		index:   index,
		raw:     b.raw.String(),
		nodes:   b.nodes,
		text:    text,
		anchors: b.anchors,
	}
}
