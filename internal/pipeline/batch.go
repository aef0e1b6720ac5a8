package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/plan"
	"github.com/nao1215/linkweaver/internal/validate"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of pages processed at once.
const DefaultConcurrency = 10

// Store is the content store as seen by a batch.
type Store interface {
	ContentStore
	ListPages(ctx context.Context) ([]model.Page, error)
	ListLinks(ctx context.Context, scopeID string) ([]model.InjectedLink, error)
	ListAllLinks(ctx context.Context) ([]model.InjectedLink, error)
	UpdateLinkStatuses(ctx context.Context, links []model.InjectedLink) error
	SaveValidationReport(ctx context.Context, report *model.ValidationReport) error
}

// Recorder observes batch outcomes, typically for metrics.
type Recorder interface {
	ObservePage(result model.PageResult)
	ObserveReport(report *model.ValidationReport)
}

// BatchProcessor injects the pages of a plan concurrently and validates
// every touched scope once all pages have settled.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because the barrier and the validation run
// belong to the batch, while a Pipeline only ever sees one page.
type BatchProcessor struct {
	// store is read for pages and links and receives reports.
	store Store

	// pipelineFactory creates a new pipeline for each page.
	pipelineFactory func() *Pipeline

	// validator judges each scope after the barrier.
	validator *validate.Validator

	// concurrency is the maximum number of pages processed at once.
	concurrency int

	recorder Recorder
	logger   *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent pages.
// Default is DefaultConcurrency if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRecorder sets a recorder notified of every page and report.
func WithRecorder(r Recorder) BatchOption {
	return func(b *BatchProcessor) {
		b.recorder = r
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each page to create a fresh
// pipeline instance.
func NewBatchProcessor(store Store, pipelineFactory func() *Pipeline, validator *validate.Validator, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		store:           store,
		pipelineFactory: pipelineFactory,
		validator:       validator,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Process injects every source page of p and validates its scopes.
//
// Per-page failures are recorded in the result and never returned. The
// error return is only set when ctx is canceled; the result then lists the
// pages to re-queue and no scope is validated.
func (bp *BatchProcessor) Process(ctx context.Context, p *plan.Plan) (*model.BatchResult, error) {
	return bp.run(ctx, p, false)
}

// Requeue re-runs the given pages of p from a stripped baseline and
// validates their scopes again.
func (bp *BatchProcessor) Requeue(ctx context.Context, p *plan.Plan, pageIDs []string) (*model.BatchResult, error) {
	return bp.run(ctx, p.Subset(pageIDs), true)
}

func (bp *BatchProcessor) run(ctx context.Context, p *plan.Plan, requeued bool) (*model.BatchResult, error) {
	result := &model.BatchResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	pages, err := bp.pageIndex(ctx)
	if err != nil {
		return nil, err
	}
	keywords := make(map[string]string, len(pages))
	for id, pg := range pages {
		keywords[id] = pg.PrimaryKeyword
	}

	sources := p.Sources()
	bp.logger.Info("starting batch",
		"batch", result.ID,
		"pages", len(sources),
		"concurrency", bp.concurrency,
		"requeued", requeued,
	)

	// Pre-allocate results slice to maintain order.
	result.Pages = make([]model.PageResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, id := range sources {
		links := p.LinksFrom(id)
		g.Go(func() error {
			// Each goroutine writes only its own slot.
			result.Pages[i] = bp.processPage(gctx, pages, keywords, id, links, requeued)
			return nil
		})
	}

	// Barrier: no scope is validated before every page has settled.
	_ = g.Wait()
	result.Elapsed = time.Since(result.StartedAt)

	for _, pr := range result.Pages {
		if pr.Canceled {
			result.Requeue = append(result.Requeue, pr.PageID)
		}
		if bp.recorder != nil {
			bp.recorder.ObservePage(pr)
		}
	}

	if err := ctx.Err(); err != nil {
		bp.logger.Warn("batch canceled",
			"batch", result.ID,
			"requeue", len(result.Requeue),
		)
		return result, err
	}

	reports, err := bp.ValidateScopes(ctx, result.ID, p.Scopes())
	result.Reports = reports

	bp.logger.Info("batch complete",
		"batch", result.ID,
		"pages", len(sources),
		"failed", len(result.FailedPages()),
		"elapsed", result.Elapsed,
	)
	return result, err
}

func (bp *BatchProcessor) processPage(ctx context.Context, pages map[string]model.Page, keywords map[string]string, id string, links []model.PlannedLink, requeued bool) model.PageResult {
	start := time.Now()
	pr := model.PageResult{PageID: id, Requeued: requeued}
	if len(links) > 0 {
		pr.ScopeID = links[0].ScopeID
	}

	if ctx.Err() != nil {
		pr.Canceled = true
		return pr
	}

	page, ok := pages[id]
	if !ok {
		pr.SetError(fmt.Errorf("%w: %s", database.ErrPageNotFound, id))
		pr.Links = unplaced(links, "source page is not in the content store")
		return pr
	}

	job := &Job{
		Page:     page,
		Links:    links,
		Keywords: keywords,
		Requeued: requeued,
	}
	err := bp.pipelineFactory().Execute(ctx, job)
	pr.Elapsed = time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		// In-flight state is discarded; the page runs again from a
		// stripped baseline.
		pr.Canceled = true
		bp.logger.Warn("page canceled", "page", id)
	case err != nil:
		pr.SetError(err)
		pr.Links = unplaced(links, err.Error())
		bp.logger.Warn("page failed", "page", id, "error", err)
	default:
		pr.Links = job.Injected
		pr.Warnings = job.Warnings
		bp.logger.Debug("page injected", "page", id, "links", len(job.Injected))
	}
	return pr
}

// ValidateScopes validates each scope from stored state and persists the
// reports and link statuses. Anchor diversity counts cover the whole store.
func (bp *BatchProcessor) ValidateScopes(ctx context.Context, batchID string, scopes []string) ([]*model.ValidationReport, error) {
	pages, err := bp.pageIndex(ctx)
	if err != nil {
		return nil, err
	}

	all, err := bp.store.ListAllLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count anchors: %w", err)
	}
	counts := validate.CountAnchors(all)

	reports := make([]*model.ValidationReport, 0, len(scopes))
	for _, scope := range scopes {
		report, err := bp.validateScope(ctx, batchID, scope, pages, counts)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (bp *BatchProcessor) validateScope(ctx context.Context, batchID, scope string, pages map[string]model.Page, counts map[model.AnchorKey]int) (*model.ValidationReport, error) {
	links, err := bp.store.ListLinks(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list links of scope %s: %w", scope, err)
	}

	content := make(map[string]string)
	for _, l := range links {
		if _, ok := content[l.SourcePageID]; ok {
			continue
		}
		html, err := bp.store.LoadContent(ctx, l.SourcePageID)
		if err != nil && !errors.Is(err, database.ErrContentNotFound) {
			return nil, fmt.Errorf("failed to load content of %s: %w", l.SourcePageID, err)
		}
		content[l.SourcePageID] = html
	}

	report := bp.validator.Validate(validate.Input{
		BatchID:      batchID,
		ScopeID:      scope,
		Pages:        pages,
		Links:        links,
		Content:      content,
		AnchorCounts: counts,
	})

	updated := make([]model.InjectedLink, len(report.Links))
	for i, r := range report.Links {
		updated[i] = r.Link
	}
	if err := bp.store.UpdateLinkStatuses(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update link statuses: %w", err)
	}
	if err := bp.store.SaveValidationReport(ctx, report); err != nil {
		return nil, err
	}
	if bp.recorder != nil {
		bp.recorder.ObserveReport(report)
	}

	bp.logger.Info("scope validated",
		"scope", scope,
		"links", len(report.Links),
		"verified", report.CountByStatus(model.StatusVerified),
		"injected", report.CountByStatus(model.StatusInjected),
		"flagged", report.CountByStatus(model.StatusFlagged),
	)
	return report, nil
}

func (bp *BatchProcessor) pageIndex(ctx context.Context) (map[string]model.Page, error) {
	list, err := bp.store.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	pages := make(map[string]model.Page, len(list))
	for _, pg := range list {
		pages[pg.ID] = pg
	}
	return pages, nil
}

func unplaced(links []model.PlannedLink, reason string) []model.InjectedLink {
	out := make([]model.InjectedLink, len(links))
	for i, pl := range links {
		out[i] = model.NewInjectedLink(pl)
		out[i].Status = model.StatusFlagged
		out[i].Reason = reason
	}
	return out
}
