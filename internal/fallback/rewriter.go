package fallback

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/linkweaver/internal/density"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/paragraph"
	"github.com/nao1215/linkweaver/internal/rewrite"
	"golang.org/x/sync/semaphore"
)

// Default settings.
const (
	// DefaultConcurrency caps concurrent rewrite calls across all pages.
	DefaultConcurrency = 3

	// DefaultTimeout bounds a single rewrite call.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxChangedSentences is how many sentences a rewrite may alter.
	DefaultMaxChangedSentences = 2

	// mandatoryParagraphs is how many leading paragraphs may hold a
	// mandatory parent link.
	mandatoryParagraphs = 2
)

// Service rewrites a paragraph so it carries a new anchor.
type Service interface {
	Rewrite(ctx context.Context, req rewrite.Request) (string, error)
}

// Observer is notified after every rewrite call.
type Observer interface {
	ObserveFallback(elapsed time.Duration, err error)
}

// Rewriter places links that literal matching could not place by asking the
// rewriting service to work the anchor into a chosen paragraph.
// A Rewriter is safe for concurrent use by many pages.
type Rewriter struct {
	service    Service
	sem        *semaphore.Weighted
	timeout    time.Duration
	maxChanged int
	maxLinks   int
	minSpacing int
	observer   Observer
	logger     *slog.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithConcurrency sets the number of rewrite calls allowed at once.
func WithConcurrency(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Rewriter) {
		r.timeout = d
	}
}

// WithMaxChangedSentences sets how many sentences a rewrite may alter.
func WithMaxChangedSentences(n int) Option {
	return func(r *Rewriter) {
		r.maxChanged = n
	}
}

// WithDensity sets the density limits used to vet rewritten paragraphs.
func WithDensity(maxLinks, minSpacing int) Option {
	return func(r *Rewriter) {
		r.maxLinks = maxLinks
		r.minSpacing = minSpacing
	}
}

// WithObserver registers an observer for rewrite calls.
func WithObserver(o Observer) Option {
	return func(r *Rewriter) {
		r.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		r.logger = logger
	}
}

// New creates a Rewriter backed by service.
func New(service Service, opts ...Option) *Rewriter {
	r := &Rewriter{
		service:    service,
		sem:        semaphore.NewWeighted(DefaultConcurrency),
		timeout:    DefaultTimeout,
		maxChanged: DefaultMaxChangedSentences,
		maxLinks:   density.DefaultMaxLinks,
		minSpacing: density.DefaultMinSpacing,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Place rewrites one paragraph of doc so that it links to link.TargetURL.
// keyword is the target page's primary keyword, used to rank candidate
// paragraphs. On success it returns the new document, the index of the
// rewritten paragraph, and updates guard. On any error doc and guard are
// left untouched.
//
// If ctx is canceled the context error is returned as-is so the caller can
// tell cancellation apart from a recoverable failure.
func (r *Rewriter) Place(ctx context.Context, doc *paragraph.Document, guard *density.Guard, link model.PlannedLink, keyword string) (*paragraph.Document, int, error) {
	p, err := r.selectParagraph(doc, guard, link, keyword)
	if err != nil {
		return nil, 0, err
	}

	out, err := r.call(ctx, rewrite.Request{
		ParagraphHTML: p.Raw(),
		TargetURL:     link.TargetURL,
		AnchorText:    link.AnchorText,
	})
	if err != nil {
		return nil, 0, err
	}

	np, err := r.check(p, out, link)
	if err != nil {
		r.logger.Debug("rewrite rejected",
			"page", link.SourcePageID,
			"anchor", link.AnchorText,
			"error", err)
		return nil, 0, err
	}

	next := doc.WithParagraph(p.Index(), np)
	placed, _ := next.Paragraph(p.Index())
	guard.Reseed(placed)

	return next, p.Index(), nil
}

// selectParagraph picks the paragraph to rewrite.
//
// Mandatory parent links may only use paragraph 1, or paragraph 2 when 1
// has no admissible position left. Other links use the admissible paragraph
// with the fewest links, preferring the best overlap with keyword, then
// document order.
func (r *Rewriter) selectParagraph(doc *paragraph.Document, guard *density.Guard, link model.PlannedLink, keyword string) (*paragraph.Paragraph, error) {
	if link.IsMandatoryParent {
		for i := 1; i <= mandatoryParagraphs; i++ {
			p, ok := doc.Paragraph(i)
			if ok && guard.HasRoom(p) {
				return p, nil
			}
		}
		return nil, fmt.Errorf("%w: paragraphs 1-%d cannot take the parent link", ErrNoCandidateParagraph, mandatoryParagraphs)
	}

	type candidate struct {
		p       *paragraph.Paragraph
		links   int
		overlap int
	}
	var candidates []candidate
	for _, p := range doc.Paragraphs() {
		if !guard.HasRoom(p) {
			continue
		}
		candidates = append(candidates, candidate{
			p:       p,
			links:   guard.Count(p.Index()),
			overlap: paragraph.KeywordOverlap(p.Text(), keyword),
		})
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidateParagraph
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.links, b.links); c != 0 {
			return c
		}
		return cmp.Compare(b.overlap, a.overlap)
	})
	return candidates[0].p, nil
}

// call runs one rewrite under the concurrency cap and the per-call timeout.
func (r *Rewriter) call(ctx context.Context, req rewrite.Request) (string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.service.Rewrite(callCtx, req)
	if r.observer != nil {
		r.observer.ObserveFallback(time.Since(start), err)
	}
	if err == nil {
		return out, nil
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s", ErrRewriteTimeout, r.timeout)
	}
	return "", fmt.Errorf("rewrite failed: %w", err)
}

// check vets a rewritten paragraph against the original.
func (r *Rewriter) check(orig *paragraph.Paragraph, out string, link model.PlannedLink) (*paragraph.Paragraph, error) {
	np, err := paragraph.ParseFragment(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	remaining := make(map[string]int)
	for _, a := range orig.Anchors() {
		remaining[strings.TrimSpace(a.Href)]++
	}
	var added []paragraph.Anchor
	for _, a := range np.Anchors() {
		href := strings.TrimSpace(a.Href)
		if remaining[href] > 0 {
			remaining[href]--
			continue
		}
		added = append(added, a)
	}
	for href, n := range remaining {
		if n > 0 {
			return nil, fmt.Errorf("%w: existing link to %s was removed", ErrAnchorMismatch, href)
		}
	}
	if len(added) != 1 {
		return nil, fmt.Errorf("%w: expected 1 new anchor, found %d", ErrAnchorMismatch, len(added))
	}
	if strings.TrimSpace(added[0].Href) != strings.TrimSpace(link.TargetURL) {
		return nil, fmt.Errorf("%w: new anchor points to %s", ErrAnchorMismatch, added[0].Href)
	}
	if !paragraph.EqualAnchorText(added[0].Text, link.AnchorText) {
		return nil, fmt.Errorf("%w: new anchor text is %q", ErrAnchorMismatch, added[0].Text)
	}

	if n := changedSentences(orig.Text(), np.Text()); n > r.maxChanged {
		return nil, fmt.Errorf("%w: %d sentences changed", ErrTooManyChanges, n)
	}

	if v, bad := density.Check(np, r.maxLinks, r.minSpacing); bad {
		return nil, fmt.Errorf("%w: %s", ErrDensityRejected, v.Kind)
	}

	return np, nil
}
