package density

import (
	"github.com/nao1215/linkweaver/internal/paragraph"
)

// Default limits.
const (
	// DefaultMaxLinks is the maximum number of links in one paragraph.
	DefaultMaxLinks = 2

	// DefaultMinSpacing is the minimum number of words between two links in
	// the same paragraph.
	DefaultMinSpacing = 50
)

// Span is the word range [Start, End) covered by a link inside a paragraph.
type Span struct {
	Start int
	End   int
}

// Option configures a Guard.
type Option func(*Guard)

// WithMaxLinks sets the per-paragraph link cap.
func WithMaxLinks(n int) Option {
	return func(g *Guard) {
		g.maxLinks = n
	}
}

// WithMinSpacing sets the minimum word distance between links.
func WithMinSpacing(n int) Option {
	return func(g *Guard) {
		g.minSpacing = n
	}
}

// Guard tracks the links of every paragraph of one page and decides whether
// a new link may be placed. A Guard belongs to a single page and is not safe
// for concurrent use.
type Guard struct {
	maxLinks   int
	minSpacing int
	spans      map[int][]Span
}

// NewGuard creates a Guard seeded with the anchors already present in doc.
func NewGuard(doc *paragraph.Document, opts ...Option) *Guard {
	g := &Guard{
		maxLinks:   DefaultMaxLinks,
		minSpacing: DefaultMinSpacing,
		spans:      make(map[int][]Span),
	}
	for _, opt := range opts {
		opt(g)
	}

	if doc != nil {
		for _, p := range doc.Paragraphs() {
			for _, a := range p.Anchors() {
				g.spans[p.Index()] = append(g.spans[p.Index()], Span{Start: a.StartWord, End: a.EndWord})
			}
		}
	}
	return g
}

// Count returns the number of links recorded for a paragraph.
func (g *Guard) Count(index int) int {
	return len(g.spans[index])
}

// Full reports whether a paragraph has reached the link cap.
func (g *Guard) Full(index int) bool {
	return g.Count(index) >= g.maxLinks
}

// Admit reports whether a link covering span may be placed in the paragraph
// at index.
func (g *Guard) Admit(index int, span Span) bool {
	existing := g.spans[index]
	if len(existing) >= g.maxLinks {
		return false
	}
	for _, s := range existing {
		if Gap(s, span) < g.minSpacing {
			return false
		}
	}
	return true
}

// HasRoom reports whether p can take one more link anywhere: the paragraph
// is below the cap and at least one of its word positions lies far enough
// from every recorded link.
func (g *Guard) HasRoom(p *paragraph.Paragraph) bool {
	index := p.Index()
	if g.Full(index) {
		return false
	}
	for w := range p.WordCount() {
		if g.Admit(index, Span{Start: w, End: w + 1}) {
			return true
		}
	}
	return false
}

// Commit records a placed link. Callers must Admit the span first.
func (g *Guard) Commit(index int, span Span) {
	g.spans[index] = append(g.spans[index], span)
}

// Reseed replaces the links recorded for p's paragraph with the anchors p
// actually holds. It is used after a paragraph was rewritten as a whole.
func (g *Guard) Reseed(p *paragraph.Paragraph) {
	spans := make([]Span, 0, p.LinkCount())
	for _, a := range p.Anchors() {
		spans = append(spans, Span{Start: a.StartWord, End: a.EndWord})
	}
	g.spans[p.Index()] = spans
}

// Gap returns the number of words strictly between two spans. Overlapping
// spans have a negative gap.
func Gap(a, b Span) int {
	if a.Start > b.Start {
		a, b = b, a
	}
	return b.Start - a.End
}

// Check verifies a finished paragraph against the limits. It reports the
// first violation found and whether there was one.
func Check(p *paragraph.Paragraph, maxLinks, minSpacing int) (Violation, bool) {
	anchors := p.Anchors()
	if len(anchors) > maxLinks {
		return Violation{Kind: TooManyLinks, Count: len(anchors)}, true
	}
	for i := 0; i < len(anchors); i++ {
		for j := i + 1; j < len(anchors); j++ {
			a := Span{Start: anchors[i].StartWord, End: anchors[i].EndWord}
			b := Span{Start: anchors[j].StartWord, End: anchors[j].EndWord}
			if gap := Gap(a, b); gap < minSpacing {
				return Violation{Kind: TooClose, Count: len(anchors), Gap: gap}, true
			}
		}
	}
	return Violation{}, false
}

// ViolationKind classifies a density violation.
type ViolationKind string

const (
	// TooManyLinks means the paragraph holds more links than allowed.
	TooManyLinks ViolationKind = "too_many_links"

	// TooClose means two links are separated by fewer words than allowed.
	TooClose ViolationKind = "too_close"
)

// Violation describes why a paragraph breaks the density limits.
type Violation struct {
	Kind  ViolationKind
	Count int
	Gap   int
}
