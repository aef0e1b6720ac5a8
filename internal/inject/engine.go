package inject

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/linkweaver/internal/density"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/paragraph"
)

// Fallback places a link that literal matching could not place.
// Implementations must leave doc and guard untouched when they fail and
// must return the context error unchanged when ctx is canceled.
type Fallback interface {
	Place(ctx context.Context, doc *paragraph.Document, guard *density.Guard, link model.PlannedLink, keyword string) (*paragraph.Document, int, error)
}

// Input is the work for one page.
type Input struct {
	Page    model.Page
	Content string

	// Links are the page's planned links in planner order.
	Links []model.PlannedLink

	// Keywords maps target page ids to their primary keyword.
	Keywords map[string]string
}

// Output is the result of injecting one page.
type Output struct {
	Content  string
	Links    []model.InjectedLink
	Warnings []string
}

// Engine injects the planned links of one page at a time. Links of a page
// are processed strictly in order because each placement changes the
// content and density state seen by the next one. An Engine holds no
// per-page state and may serve many pages concurrently.
type Engine struct {
	injector   Injector
	fallback   Fallback
	maxLinks   int
	minSpacing int
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallback enables the fallback rewriter.
func WithFallback(f Fallback) Option {
	return func(e *Engine) {
		e.fallback = f
	}
}

// WithDensity sets the paragraph density limits.
func WithDensity(maxLinks, minSpacing int) Option {
	return func(e *Engine) {
		e.maxLinks = maxLinks
		e.minSpacing = minSpacing
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxLinks:   density.DefaultMaxLinks,
		minSpacing: density.DefaultMinSpacing,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run injects every link of in. Link failures are recorded as flagged links
// and never stop the page. Run only fails when ctx is canceled; the partial
// result is then discarded and the caller must re-queue the page.
func (e *Engine) Run(ctx context.Context, in Input) (Output, error) {
	doc := paragraph.Parse(in.Content)
	guard := density.NewGuard(doc,
		density.WithMaxLinks(e.maxLinks),
		density.WithMinSpacing(e.minSpacing))

	queue := NewQueue(in.Links)
	out := Output{Links: make([]model.InjectedLink, 0, queue.Len())}

	for {
		pl, ok := queue.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		link := model.NewInjectedLink(pl)
		next, err := e.place(ctx, doc, guard, &link, in.Keywords[pl.TargetPageID])
		if err != nil {
			return Output{}, err
		}
		doc = next

		if link.Status == model.StatusFlagged {
			out.Warnings = append(out.Warnings, fmt.Sprintf("link %q -> %s flagged: %s", pl.AnchorText, pl.TargetURL, link.Reason))
			e.logger.Warn("link flagged",
				"page", in.Page.ID,
				"anchor", pl.AnchorText,
				"target", pl.TargetURL,
				"reason", link.Reason)
		} else {
			e.logger.Debug("link injected",
				"page", in.Page.ID,
				"anchor", pl.AnchorText,
				"target", pl.TargetURL,
				"method", link.PlacementMethod)
		}
		out.Links = append(out.Links, link)
	}

	out.Content = doc.Render()
	return out, nil
}

// place tries rule-based injection, then the fallback. It fills in link and
// returns the document to continue with. The only error it returns is a
// context error.
func (e *Engine) place(ctx context.Context, doc *paragraph.Document, guard *density.Guard, link *model.InjectedLink, keyword string) (*paragraph.Document, error) {
	if strings.TrimSpace(link.AnchorText) == "" {
		flag(link, "empty anchor text")
		return doc, nil
	}

	if next, index, ok := e.injector.Place(doc, guard, link.PlannedLink); ok {
		link.Status = model.StatusInjected
		link.PlacementMethod = model.MethodRuleBased
		link.ParagraphIndex = index
		return next, nil
	}

	if e.fallback == nil {
		flag(link, "anchor text not found and fallback is disabled")
		return doc, nil
	}

	next, index, err := e.fallback.Place(ctx, doc, guard, link.PlannedLink, keyword)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		flag(link, err.Error())
		return doc, nil
	}

	link.Status = model.StatusInjected
	link.PlacementMethod = model.MethodLLMFallback
	link.ParagraphIndex = index
	return next, nil
}

func flag(link *model.InjectedLink, reason string) {
	link.Status = model.StatusFlagged
	link.PlacementMethod = model.MethodUnplaced
	link.ParagraphIndex = 0
	link.Reason = reason
}
