package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkweaver/internal/model"
)

// Job is the unit of work for one source page. Steps read and fill it in
// order: content is loaded, possibly stripped, injected and saved.
type Job struct {
	// Page is the source page.
	Page model.Page

	// Links are the page's planned links in planner order.
	Links []model.PlannedLink

	// Keywords maps target page ids to their primary keyword.
	Keywords map[string]string

	// Requeued marks a page re-run after its batch was canceled. Its stored
	// content is stripped back to a clean baseline before injection.
	Requeued bool

	// Content is the page HTML as the previous step left it.
	Content string

	// Injected holds the placement outcome of every link once the inject
	// step has run.
	Injected []model.InjectedLink

	// Warnings collects non-fatal notes from all steps.
	Warnings []string

	// Performed lists the names of the steps that completed.
	Performed []string

	// Err is the error that stopped the job.
	Err error
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the job as the
// previous steps left it.
//
// Design decision: We use an interface rather than function types because
// steps carry their collaborators (store, engine, stripper) and the Name()
// method keeps logs readable.
type Step interface {
	// Do executes the pipeline step. Link-level problems are recorded in
	// the job; an error means the page cannot continue.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs the steps of one page in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails.
//
// The injection pipeline never sets this: saving content after a failed
// inject step would persist a half-processed page. It exists for auxiliary
// pipelines whose steps are independent of each other.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Context cancellation is checked before each step. A canceled job keeps
// nothing: the caller discards it and re-queues the page.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"page", job.Page.ID,
				"reason", ctx.Err(),
			)
			job.Err = ctx.Err()
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"page", job.Page.ID,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"page", job.Page.ID,
				"error", err,
			)

			job.Err = err

			if !p.continueOnError {
				return err
			}
			continue
		}

		job.Performed = append(job.Performed, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
