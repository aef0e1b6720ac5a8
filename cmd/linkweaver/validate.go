package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nao1215/linkweaver/internal/config"
	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/metrics"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/linkweaver/internal/pipeline"
	"github.com/spf13/cobra"
)

// errScopesFailed is returned when at least one validated scope has a
// failing link, so that scripts can gate on the exit status.
var errScopesFailed = errors.New("validation failed")

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scope...]",
		Short: "Re-run validation of stored scopes",
		Long: `Validate re-checks stored content and links of the given scopes, or of every
scope in the store when none is given. Link statuses and a new report are
saved for each scope.

With --strict a scope also fails when any link is flagged or still planned.
With --stored the latest saved report of each scope is printed instead and
nothing is re-checked.

Examples:
  # Validate every scope
  linkweaver validate

  # Validate one cluster and write a Markdown report
  linkweaver validate trail-running --markdown -o trail.md

  # Show the last stored report
  linkweaver validate trail-running --stored`,
		RunE: runValidateCmd,
	}

	cmd.Flags().Bool("stored", false, "Print the latest stored report without re-validating")
	cmd.Flags().Bool("strict", false, "Also fail when links are flagged or not injected")
	addOutputFlags(cmd)

	return cmd
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyOutputFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	stored, err := cmd.Flags().GetBool("stored")
	if err != nil {
		return err
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	scopes := args
	if len(scopes) == 0 {
		if scopes, err = store.ListScopes(ctx); err != nil {
			return err
		}
	}

	var reports []*model.ValidationReport
	if stored {
		reports, err = storedReports(ctx, store, scopes, logger)
	} else {
		rec := metrics.NewRecorder()
		bp := pipeline.NewBatchProcessor(store, nil, newValidator(cfg, logger),
			pipeline.WithBatchLogger(logger),
			pipeline.WithRecorder(rec))
		reports, err = bp.ValidateScopes(ctx, uuid.NewString(), scopes)
		if err == nil {
			err = writeMetrics(cfg, rec, logger)
		}
	}
	if err != nil {
		return err
	}

	if err := writeReports(cfg, cmd.OutOrStdout(), reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if !passes(r, strict) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d scopes have failing links", errScopesFailed, failed, len(reports))
	}
	return nil
}

// passes reports whether a scope counts as passing. Without strict only
// placed links that failed a rule count; with strict every link must be
// verified.
func passes(r *model.ValidationReport, strict bool) bool {
	if !strict {
		return r.Verified()
	}
	return r.CountByStatus(model.StatusVerified) == len(r.Links)
}

func storedReports(ctx context.Context, store *database.Store, scopes []string, logger *slog.Logger) ([]*model.ValidationReport, error) {
	reports := make([]*model.ValidationReport, 0, len(scopes))
	for _, scope := range scopes {
		r, err := store.GetLatestValidationReport(ctx, scope)
		if err != nil {
			return nil, err
		}
		if r == nil {
			logger.Warn("no stored report", "scope", scope)
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func writeReports(cfg *config.Config, stdout io.Writer, reports []*model.ValidationReport) error {
	out, closeOut, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	w := newReportWriter(cfg, out)
	for _, r := range reports {
		if _, err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}
