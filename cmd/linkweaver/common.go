package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/linkweaver/internal/config"
	"github.com/nao1215/linkweaver/internal/database"
	lwlog "github.com/nao1215/linkweaver/internal/log"
	"github.com/nao1215/linkweaver/internal/metrics"
	"github.com/nao1215/linkweaver/internal/report"
	"github.com/spf13/cobra"
)

// changed reports whether the named flag exists on cmd and was set.
// Flag defaults must not override values from the configuration file.
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig merges defaults, the configuration file and the flags shared
// by every command. Command-specific flags are applied by the caller.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	if changed(cmd, "config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
		cfg.ConfigFilePath = path
	}
	if _, err := config.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if changed(cmd, "db-dir") {
		dir, err := cmd.Flags().GetString("db-dir")
		if err != nil {
			return nil, err
		}
		cfg.DBDir = dir
	}
	if cfg.RewriterAPIKey == "" {
		cfg.RewriterAPIKey = os.Getenv(config.EnvRewriterAPIKey)
	}
	return cfg, nil
}

// applyOutputFlags reads the report flags shared by inject and validate.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if cfg.MetricsFile, err = cmd.Flags().GetString("metrics-file"); err != nil {
		return err
	}
	return nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics in textfile collector format to this path")
}

// setupLogger creates the credential-masking logger on stderr.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return lwlog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func openStore(cfg *config.Config, logger *slog.Logger) (*database.Store, error) {
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}
	logger.Debug("content store opened", "path", store.Path())
	return store, nil
}

// openOutput returns the report destination: cfg.ReportFile, created with
// its parent directories, or stdout.
func openOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter picks the report format from the configuration.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, readVersionInfo().Version, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// writeMetrics exports rec when a metrics file is configured.
func writeMetrics(cfg *config.Config, rec *metrics.Recorder, logger *slog.Logger) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		return err
	}
	logger.Debug("metrics written", "path", cfg.MetricsFile)
	return nil
}
