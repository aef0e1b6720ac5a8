package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/linkweaver/internal/config"
	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/strip"
	"github.com/spf13/cobra"
)

// NewStripCmd creates the strip command.
func NewStripCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strip [file]",
		Short: "Remove internal links from HTML",
		Long: `Strip unwraps every internal anchor and keeps its text. External links are
left alone. Which links count as internal is set by internalDomains and
internalPaths in the configuration file.

Without --scope the HTML is read from the file argument, or stdin, and the
result is written to stdout. With --scope the stored content of every page in
the scope is stripped and its links are reset to planned.

Examples:
  # Strip a single file
  linkweaver strip page.html > clean.html

  # Strip a cluster in the content store before re-planning it
  linkweaver strip --scope trail-running`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStripCmd,
	}

	cmd.Flags().String("scope", "", "Strip the stored content of every page in this scope")
	cmd.Flags().StringSlice("domain", nil,
		"Additional internal domain (repeatable, adds to internalDomains)")

	return cmd
}

func runStripCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	domains, err := cmd.Flags().GetStringSlice("domain")
	if err != nil {
		return err
	}
	cfg.InternalDomains = append(cfg.InternalDomains, domains...)

	scope, err := cmd.Flags().GetString("scope")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg)
	stripper := strip.New(cfg.Scope())

	if scope == "" {
		return stripInput(cmd.InOrStdin(), cmd.OutOrStdout(), args, stripper, logger)
	}
	if len(args) > 0 {
		return fmt.Errorf("a file argument cannot be combined with --scope")
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()
	return stripStoredScope(ctx, cfg, cmd.OutOrStdout(), scope, stripper, logger)
}

func stripInput(stdin io.Reader, stdout io.Writer, args []string, stripper *strip.Stripper, logger *slog.Logger) error {
	in := stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	result := stripper.StripDetailed(string(data))
	logger.Debug("anchors removed", "count", result.Removed, "hrefs", result.Hrefs)

	_, err = io.WriteString(stdout, result.HTML)
	return err
}

func stripStoredScope(ctx context.Context, cfg *config.Config, stdout io.Writer, scope string, stripper *strip.Stripper, logger *slog.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pages, err := store.ListPagesInScope(ctx, scope)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("%w: no pages in scope %s", database.ErrPageNotFound, scope)
	}

	removed := 0
	for _, page := range pages {
		html, err := store.LoadContent(ctx, page.ID)
		if err != nil {
			logger.Warn("page skipped", "page", page.ID, "error", err)
			continue
		}
		result := stripper.StripDetailed(html)
		if result.Removed == 0 {
			continue
		}
		if err := store.SaveContent(ctx, page.ID, result.HTML); err != nil {
			return err
		}
		removed += result.Removed
		logger.Debug("page stripped", "page", page.ID, "removed", result.Removed)
	}

	reset, err := store.ResetScopeLinks(ctx, scope)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Stripped %d anchors from %d pages in scope %s; %d links reset to planned\n",
		removed, len(pages), scope, reset)
	return nil
}
