package inject

import (
	"github.com/nao1215/linkweaver/internal/density"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/paragraph"
)

// mandatoryParagraphs is how many leading paragraphs are scanned for a
// mandatory parent link.
const mandatoryParagraphs = 2

// Injector places links by literal anchor-text matching.
type Injector struct{}

// Place scans doc for the link's anchor text and wraps the first occurrence
// in the first paragraph that matches and is admitted by guard. It returns
// the new document and the paragraph index, or false when no paragraph can
// take the link. doc is never modified; guard is updated on success.
func (Injector) Place(doc *paragraph.Document, guard *density.Guard, link model.PlannedLink) (*paragraph.Document, int, bool) {
	for _, p := range doc.Paragraphs() {
		if link.IsMandatoryParent && p.Index() > mandatoryParagraphs {
			break
		}

		m, ok := p.Find(link.AnchorText)
		if !ok {
			continue
		}
		span := density.Span{Start: m.StartWord, End: m.EndWord}
		if !guard.Admit(p.Index(), span) {
			continue
		}

		guard.Commit(p.Index(), span)
		return doc.WithParagraph(p.Index(), p.Wrap(m, link.TargetURL)), p.Index(), true
	}
	return doc, 0, false
}
