package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/inject"
	"github.com/nao1215/linkweaver/internal/model"
)

// ContentStore is the part of the content store a page pipeline touches.
// A page owns its own rows exclusively while its job runs.
type ContentStore interface {
	LoadContent(ctx context.Context, pageID string) (string, error)
	LoadBaseline(ctx context.Context, pageID string) (string, error)
	// SavePage writes the content and the link records of a page
	// atomically.
	SavePage(ctx context.Context, pageID, html string, links []model.InjectedLink) error
}

// Injector places the planned links of one page.
type Injector interface {
	Run(ctx context.Context, in inject.Input) (inject.Output, error)
}

// Stripper removes internal links from HTML.
type Stripper interface {
	Strip(content string) string
}

// Step names.
const (
	StepLoadContent   = "load_content"
	StepStripBaseline = "strip_baseline"
	StepInject        = "inject"
	StepSaveContent   = "save_content"
)

// LoadContentStep reads the page's current HTML from the store.
type LoadContentStep struct {
	store ContentStore
}

// NewLoadContentStep creates a LoadContentStep.
func NewLoadContentStep(store ContentStore) *LoadContentStep {
	return &LoadContentStep{store: store}
}

// Name returns the step name.
func (s *LoadContentStep) Name() string {
	return StepLoadContent
}

// Do executes the load step.
func (s *LoadContentStep) Do(ctx context.Context, job *Job) error {
	content, err := s.store.LoadContent(ctx, job.Page.ID)
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}
	job.Content = content
	return nil
}

// StripBaselineStep gives a re-queued page a clean starting point. It strips
// internal links from the page's baseline, or from its current content when
// no baseline exists. Pages that are not re-queued pass through untouched.
type StripBaselineStep struct {
	store    ContentStore
	stripper Stripper
	logger   *slog.Logger
}

// StripBaselineStepOption configures a StripBaselineStep.
type StripBaselineStepOption func(*StripBaselineStep)

// WithStripLogger sets a custom logger for the strip step.
func WithStripLogger(logger *slog.Logger) StripBaselineStepOption {
	return func(s *StripBaselineStep) {
		s.logger = logger
	}
}

// NewStripBaselineStep creates a StripBaselineStep.
func NewStripBaselineStep(store ContentStore, stripper Stripper, opts ...StripBaselineStepOption) *StripBaselineStep {
	s := &StripBaselineStep{
		store:    store,
		stripper: stripper,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *StripBaselineStep) Name() string {
	return StepStripBaseline
}

// Do executes the strip step.
func (s *StripBaselineStep) Do(ctx context.Context, job *Job) error {
	if !job.Requeued {
		return nil
	}

	content, err := s.store.LoadBaseline(ctx, job.Page.ID)
	switch {
	case errors.Is(err, database.ErrContentNotFound):
		content = job.Content
	case err != nil:
		return fmt.Errorf("failed to load baseline: %w", err)
	}

	job.Content = s.stripper.Strip(content)
	s.logger.Debug("re-queued page stripped to baseline", "page", job.Page.ID)
	return nil
}

// InjectStep runs the injection engine over the page.
type InjectStep struct {
	engine Injector
}

// NewInjectStep creates an InjectStep.
func NewInjectStep(engine Injector) *InjectStep {
	return &InjectStep{engine: engine}
}

// Name returns the step name.
func (s *InjectStep) Name() string {
	return StepInject
}

// Do executes the inject step. Only cancellation stops it; link failures
// come back as flagged links.
func (s *InjectStep) Do(ctx context.Context, job *Job) error {
	out, err := s.engine.Run(ctx, inject.Input{
		Page:     job.Page,
		Content:  job.Content,
		Links:    job.Links,
		Keywords: job.Keywords,
	})
	if err != nil {
		return err
	}
	job.Content = out.Content
	job.Injected = out.Links
	job.Warnings = append(job.Warnings, out.Warnings...)
	return nil
}

// SaveContentStep writes the injected content and link records back.
type SaveContentStep struct {
	store ContentStore
}

// NewSaveContentStep creates a SaveContentStep.
func NewSaveContentStep(store ContentStore) *SaveContentStep {
	return &SaveContentStep{store: store}
}

// Name returns the step name.
func (s *SaveContentStep) Name() string {
	return StepSaveContent
}

// Do executes the save step.
func (s *SaveContentStep) Do(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.SavePage(ctx, job.Page.ID, job.Content, job.Injected); err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

// NewPagePipeline assembles the injection pipeline for one page.
func NewPagePipeline(store ContentStore, engine Injector, stripper Stripper, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := New(WithLogger(logger))
	p.AddSteps(
		NewLoadContentStep(store),
		NewStripBaselineStep(store, stripper, WithStripLogger(logger)),
		NewInjectStep(engine),
		NewSaveContentStep(store),
	)
	return p
}
