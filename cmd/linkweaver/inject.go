package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nao1215/linkweaver/internal/config"
	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/fallback"
	"github.com/nao1215/linkweaver/internal/inject"
	"github.com/nao1215/linkweaver/internal/metrics"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/pipeline"
	"github.com/nao1215/linkweaver/internal/plan"
	"github.com/nao1215/linkweaver/internal/rewrite"
	"github.com/nao1215/linkweaver/internal/strip"
	"github.com/nao1215/linkweaver/internal/validate"
	"github.com/spf13/cobra"
)

// NewInjectCmd creates the inject command.
func NewInjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Inject planned links and validate every affected cluster",
		Long: `Inject reads the planner output, places each link into its source page and
validates every scope once all pages have been processed.

Pages listed with a content_file are imported into the content store the
first time they are seen. Later runs work on the stored content.

Examples:
  # Inject a plan and print a text report
  linkweaver inject --plan plan.json

  # Markdown report to a file, no LLM fallback
  linkweaver inject --plan plan.json --markdown -o reports/links.md --no-fallback

  # Re-run pages that were canceled by an interrupted batch
  linkweaver inject --plan plan.json --requeue trail-shoes,trail-socks

  # Export metrics for the node exporter textfile collector
  linkweaver inject --plan plan.json --metrics-file /var/lib/node_exporter/linkweaver.prom`,
		Args: cobra.NoArgs,
		RunE: runInjectCmd,
	}

	cmd.Flags().StringP("plan", "p", "", "Planner output (JSON) to inject")
	cmd.Flags().StringSlice("requeue", nil,
		"Re-run only these page ids, starting from their stripped baseline")

	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of pages processed at once")
	cmd.Flags().Int("fallback-concurrency", config.DefaultFallbackConcurrency,
		"Maximum concurrent rewrite requests")
	cmd.Flags().Duration("fallback-timeout", config.DefaultFallbackTimeout,
		"Timeout of a single rewrite request")
	cmd.Flags().Bool("no-fallback", false,
		"Disable the LLM rewriter; unmatched links are reported as unplaced")
	cmd.Flags().String("rewriter-url", config.DefaultRewriterURL,
		"Base URL of the Ollama-compatible rewriter")
	cmd.Flags().String("rewriter-model", config.DefaultRewriterModel,
		"Model used by the rewriter")

	addOutputFlags(cmd)

	return cmd
}

func runInjectCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyInjectFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.ValidateInject(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runInject(ctx, cfg, cmd.OutOrStdout(), logger)
}

// applyInjectFlags copies the inject flags that were set onto cfg.
func applyInjectFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.PlanFile, err = cmd.Flags().GetString("plan"); err != nil {
		return err
	}
	if cfg.Requeue, err = cmd.Flags().GetStringSlice("requeue"); err != nil {
		return err
	}
	if changed(cmd, "concurrency") {
		if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
			return err
		}
	}
	if changed(cmd, "fallback-concurrency") {
		if cfg.FallbackConcurrency, err = cmd.Flags().GetInt("fallback-concurrency"); err != nil {
			return err
		}
	}
	if changed(cmd, "fallback-timeout") {
		if cfg.FallbackTimeout, err = cmd.Flags().GetDuration("fallback-timeout"); err != nil {
			return err
		}
	}
	if changed(cmd, "no-fallback") {
		if cfg.DisableFallback, err = cmd.Flags().GetBool("no-fallback"); err != nil {
			return err
		}
	}
	if changed(cmd, "rewriter-url") {
		if cfg.RewriterURL, err = cmd.Flags().GetString("rewriter-url"); err != nil {
			return err
		}
	}
	if changed(cmd, "rewriter-model") {
		if cfg.RewriterModel, err = cmd.Flags().GetString("rewriter-model"); err != nil {
			return err
		}
	}
	return applyOutputFlags(cmd, cfg)
}

// runInject executes one injection batch and writes its report to stdout
// or cfg.ReportFile.
func runInject(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	p, err := plan.Load(cfg.PlanFile)
	if err != nil {
		return err
	}

	logger.Info("starting injection",
		"plan", cfg.PlanFile,
		"pages", len(p.Sources()),
		"links", len(p.Links),
		"concurrency", cfg.Concurrency,
		"fallback", !cfg.DisableFallback,
		"rewriter", cfg.RewriterURL,
		"apiKey", cfg.RewriterAPIKey,
	)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := importPlan(ctx, store, p, logger); err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	bp := newBatchProcessor(cfg, store, rec, logger)

	start := time.Now()
	var result *model.BatchResult
	if len(cfg.Requeue) > 0 {
		result, err = bp.Requeue(ctx, p, cfg.Requeue)
	} else {
		result, err = bp.Process(ctx, p)
	}
	logger.Info("injection finished", "elapsed", time.Since(start).Round(time.Millisecond))

	if result != nil {
		if werr := writeBatch(cfg, stdout, result); werr != nil {
			logger.Error("report failed", "error", werr)
		}
	}
	merr := writeMetrics(cfg, rec, logger)

	if errors.Is(err, context.Canceled) && result != nil && len(result.Requeue) > 0 {
		return fmt.Errorf("injection canceled, re-run with --requeue %s: %w", strings.Join(result.Requeue, ","), err)
	}
	if err != nil {
		return err
	}
	return merr
}

// importPlan registers every plan page in the store and imports content
// files for pages that have no stored content yet.
func importPlan(ctx context.Context, store *database.Store, p *plan.Plan, logger *slog.Logger) error {
	for _, spec := range p.Pages {
		if err := store.UpsertPage(ctx, spec.Page); err != nil {
			return err
		}
		if spec.ContentFile == "" {
			continue
		}

		_, err := store.LoadContent(ctx, spec.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, database.ErrContentNotFound) {
			return err
		}

		html, err := os.ReadFile(spec.ContentFile)
		if err != nil {
			return fmt.Errorf("failed to read content of page %s: %w", spec.ID, err)
		}
		if err := store.SaveContent(ctx, spec.ID, string(html)); err != nil {
			return err
		}
		logger.Debug("content imported", "page", spec.ID, "file", spec.ContentFile)
	}
	return nil
}

// newValidator builds the scope validator from the configuration.
func newValidator(cfg *config.Config, logger *slog.Logger) *validate.Validator {
	return validate.New(cfg.Scope(),
		validate.WithBudget(cfg.BudgetMin, cfg.BudgetMax),
		validate.WithDiversityLimit(cfg.AnchorDiversityLimit),
		validate.WithDensity(cfg.MaxLinksPerParagraph, cfg.MinWordSpacing),
		validate.WithLogger(logger),
	)
}

// newBatchProcessor wires the rewriter, injector, stripper and validator
// into a BatchProcessor backed by store.
func newBatchProcessor(cfg *config.Config, store *database.Store, rec *metrics.Recorder, logger *slog.Logger) *pipeline.BatchProcessor {
	engineOpts := []inject.Option{
		inject.WithDensity(cfg.MaxLinksPerParagraph, cfg.MinWordSpacing),
		inject.WithLogger(logger),
	}
	if !cfg.DisableFallback {
		client := rewrite.NewClient(
			rewrite.WithBaseURL(cfg.RewriterURL),
			rewrite.WithModel(cfg.RewriterModel),
			rewrite.WithAPIKey(cfg.RewriterAPIKey),
			rewrite.WithLogger(logger),
		)
		rewriter := fallback.New(client,
			fallback.WithConcurrency(cfg.FallbackConcurrency),
			fallback.WithTimeout(cfg.FallbackTimeout),
			fallback.WithDensity(cfg.MaxLinksPerParagraph, cfg.MinWordSpacing),
			fallback.WithObserver(rec),
			fallback.WithLogger(logger),
		)
		engineOpts = append(engineOpts, inject.WithFallback(rewriter))
	}

	engine := inject.NewEngine(engineOpts...)
	stripper := strip.New(cfg.Scope())

	return pipeline.NewBatchProcessor(store,
		func() *pipeline.Pipeline {
			return pipeline.NewPagePipeline(store, engine, stripper, logger)
		},
		newValidator(cfg, logger),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
		pipeline.WithRecorder(rec),
	)
}

func writeBatch(cfg *config.Config, stdout io.Writer, result *model.BatchResult) error {
	out, closeOut, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	_, err = newReportWriter(cfg, out).WriteBatch(result)
	return err
}
