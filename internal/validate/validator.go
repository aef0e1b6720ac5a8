package validate

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/linkweaver/internal/density"
	"github.com/nao1215/linkweaver/internal/model"
)

// Default rule limits.
const (
	// DefaultBudgetMin is the minimum number of outbound links per page.
	DefaultBudgetMin = 3

	// DefaultBudgetMax is the maximum number of outbound links per page.
	DefaultBudgetMax = 5

	// DefaultDiversityLimit is how many times one (anchor, target) pair may
	// appear across the project.
	DefaultDiversityLimit = 3
)

// Predicate reports whether an href is an internal link.
type Predicate interface {
	IsInternal(href string) bool
}

// Input is everything the rules need to judge one scope.
type Input struct {
	// BatchID links the report to the batch that produced it.
	BatchID string

	ScopeID string

	// Pages holds every known page, keyed by id. Targets outside the scope
	// must be present so that silo violations can be told apart from
	// unknown pages.
	Pages map[string]model.Page

	// Links are the scope's links in planner order.
	Links []model.InjectedLink

	// Content is the final HTML of each source page, keyed by page id.
	Content map[string]string

	// AnchorCounts are project-wide counts of placed links per anchor key.
	// When nil they are computed from Links alone.
	AnchorCounts map[model.AnchorKey]int
}

// Validator runs the link-graph rules over a scope once all of its pages
// have settled.
type Validator struct {
	predicate      Predicate
	budgetMin      int
	budgetMax      int
	diversityLimit int
	maxLinks       int
	minSpacing     int
	now            func() time.Time
	logger         *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithBudget sets the outbound link budget.
func WithBudget(minLinks, maxLinks int) Option {
	return func(v *Validator) {
		v.budgetMin = minLinks
		v.budgetMax = maxLinks
	}
}

// WithDiversityLimit sets the anchor diversity limit.
func WithDiversityLimit(n int) Option {
	return func(v *Validator) {
		v.diversityLimit = n
	}
}

// WithDensity sets the paragraph density limits.
func WithDensity(maxLinks, minSpacing int) Option {
	return func(v *Validator) {
		v.maxLinks = maxLinks
		v.minSpacing = minSpacing
	}
}

// WithClock sets the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator. predicate decides which hrefs are internal; it is
// used by the silo and first-link rules.
func New(predicate Predicate, opts ...Option) *Validator {
	v := &Validator{
		predicate:      predicate,
		budgetMin:      DefaultBudgetMin,
		budgetMax:      DefaultBudgetMax,
		diversityLimit: DefaultDiversityLimit,
		maxLinks:       density.DefaultMaxLinks,
		minSpacing:     density.DefaultMinSpacing,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate evaluates every rule for every link of the scope. Rule failures
// are data: Validate never fails.
func (v *Validator) Validate(in Input) *model.ValidationReport {
	counts := in.AnchorCounts
	if counts == nil {
		counts = CountAnchors(in.Links)
	}

	report := &model.ValidationReport{
		ID:          uuid.NewString(),
		BatchID:     in.BatchID,
		ScopeID:     in.ScopeID,
		Cluster:     model.IsClusterScope(in.ScopeID),
		GeneratedAt: v.now().UTC(),
		Links:       make([]model.LinkResult, 0, len(in.Links)),
	}

	sources := groupBySource(in.Links)
	byLink := make(map[int]model.LinkResult, len(in.Links))

	for _, src := range sources {
		page := in.Pages[src.pageID]
		if page.ID == "" {
			page = model.Page{ID: src.pageID, ScopeID: in.ScopeID, Role: model.RoleNone}
		}
		pc := &pageContext{
			v:       v,
			in:      &in,
			page:    page,
			content: in.Content[src.pageID],
			counts:  counts,
		}
		summary := pc.evaluate(src.indexes, byLink)
		report.Pages = append(report.Pages, summary)
	}

	for i := range in.Links {
		report.Links = append(report.Links, byLink[i])
	}

	v.logger.Debug("scope validated",
		"scope", in.ScopeID,
		"links", len(report.Links),
		"verified", report.CountByStatus(model.StatusVerified))

	return report
}

// CountAnchors counts placed links per anchor key.
func CountAnchors(links []model.InjectedLink) map[model.AnchorKey]int {
	counts := make(map[model.AnchorKey]int)
	for _, l := range links {
		if l.Placed() {
			counts[l.Key()]++
		}
	}
	return counts
}

type sourceGroup struct {
	pageID  string
	indexes []int
}

// groupBySource groups link indexes by source page in order of first
// appearance.
func groupBySource(links []model.InjectedLink) []sourceGroup {
	var groups []sourceGroup
	pos := make(map[string]int)
	for i, l := range links {
		g, ok := pos[l.SourcePageID]
		if !ok {
			g = len(groups)
			pos[l.SourcePageID] = g
			groups = append(groups, sourceGroup{pageID: l.SourcePageID})
		}
		groups[g].indexes = append(groups[g].indexes, i)
	}
	return groups
}
