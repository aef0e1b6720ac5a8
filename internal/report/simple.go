package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/linkweaver/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so that output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose lists every link with its rule outcomes instead of only the
	// links that need attention.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one validation report.
func (w *SimpleWriter) Write(report *model.ValidationReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs a batch summary followed by every scope report.
func (w *SimpleWriter) WriteBatch(result *model.BatchResult) (int, error) {
	var sb strings.Builder

	w.rule(&sb, "=")
	sb.WriteString("                        LINKWEAVER BATCH\n")
	w.rule(&sb, "=")
	sb.WriteString("\n")

	t := totals(result)
	fmt.Fprintf(&sb, "Batch:      %s\n", result.ID)
	fmt.Fprintf(&sb, "Started:    %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Elapsed:    %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Pages:      %d (%d failed, %d canceled)\n", t.pages, t.failed, t.canceled)
	fmt.Fprintf(&sb, "Links:      %d\n", t.links)
	sb.WriteString("\n")

	for _, p := range result.Pages {
		switch {
		case p.Canceled:
			fmt.Fprintf(&sb, "  [~] %s canceled\n", p.PageID)
		case !p.Succeeded():
			fmt.Fprintf(&sb, "  [x] %s: %s\n", p.PageID, p.ErrorMessage)
		}
		if w.verbose {
			for _, warn := range p.Warnings {
				fmt.Fprintf(&sb, "  [!] %s: %s\n", p.PageID, warn)
			}
		}
	}
	if len(result.Requeue) > 0 {
		fmt.Fprintf(&sb, "\nRe-queue with: --requeue %s\n", strings.Join(result.Requeue, ","))
	}
	sb.WriteString("\n")

	for _, r := range result.Reports {
		w.writeReport(&sb, r)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, report *model.ValidationReport) {
	w.rule(sb, "-")
	fmt.Fprintf(sb, "SCOPE %s\n", report.ScopeID)
	w.rule(sb, "-")
	sb.WriteString("\n")

	kind := "topic cluster"
	if !report.Cluster {
		kind = "onboarding"
	}
	fmt.Fprintf(sb, "Kind:       %s\n", kind)
	fmt.Fprintf(sb, "Validated:  %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Verified() {
		sb.WriteString("Status:     VERIFIED\n")
	} else {
		sb.WriteString("Status:     NEEDS ATTENTION\n")
	}
	sb.WriteString("\n")

	for _, s := range statusOrder {
		fmt.Fprintf(sb, "  %-9s %d\n", strings.ToUpper(string(s))+":", report.CountByStatus(s))
	}
	sb.WriteString("\n")

	failures := report.RuleFailures()
	if len(failures) > 0 {
		sb.WriteString("Rule failures:\n")
		for _, rule := range model.AllRules() {
			if n := failures[rule]; n > 0 {
				fmt.Fprintf(sb, "  %-20s %d\n", rule, n)
			}
		}
		sb.WriteString("\n")
	}

	for _, p := range report.Pages {
		fmt.Fprintf(sb, "  [%s] %s (%s, %d links)\n", w.indicator(p.Status), p.PageID, p.Role, p.OutboundLinks)
		for _, warn := range p.Warnings {
			fmt.Fprintf(sb, "      warning: %s\n", warn)
		}
	}
	sb.WriteString("\n")

	for _, l := range report.Links {
		if !w.verbose && l.Status == model.StatusVerified {
			continue
		}
		fmt.Fprintf(sb, "  [%s] %s -> %s %q\n", w.indicator(l.Status), l.Link.SourcePageID, l.Link.TargetURL, l.Link.AnchorText)
		if l.Link.Reason != "" {
			fmt.Fprintf(sb, "      reason: %s\n", l.Link.Reason)
		}
		for _, o := range l.Outcomes {
			if o.Passed && !o.Warning && !w.verbose {
				continue
			}
			fmt.Fprintf(sb, "      %-20s %s\n", o.Rule, w.outcomeText(o))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) outcomeText(o model.RuleOutcome) string {
	var state string
	switch {
	case !o.Passed:
		state = "FAIL"
	case o.Warning:
		state = "WARN"
	case o.Skipped:
		state = "skip"
	default:
		state = "ok"
	}
	if o.Detail == "" {
		return state
	}
	return state + " - " + o.Detail
}

// indicator returns a visual indicator for a status.
func (w *SimpleWriter) indicator(s model.Status) string {
	switch s {
	case model.StatusVerified:
		return "+"
	case model.StatusInjected:
		return "!"
	case model.StatusFlagged:
		return "x"
	default:
		return " "
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	w.rule(sb, "=")
	sb.WriteString("Report generated by linkweaver\n")
	w.rule(sb, "=")
}
