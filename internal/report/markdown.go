package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/linkweaver/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format for sharing in pull
// requests and content reviews.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation. It gives us tables, GitHub alerts and mermaid charts without
// hand-escaping pipes in anchor texts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one validation report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ValidationReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Link Validation Report")
	md.PlainText("")
	w.writeScope(md, report, 2)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs a batch result in Markdown format.
func (w *MarkdownWriter) WriteBatch(result *model.BatchResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Link Injection Batch")
	md.PlainText("")

	t := totals(result)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Batch", "`" + result.ID + "`"},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages", strconv.Itoa(t.pages)},
			{"Failed", strconv.Itoa(t.failed)},
			{"Canceled", strconv.Itoa(t.canceled)},
			{"Links", strconv.Itoa(t.links)},
		},
	})
	md.PlainText("")

	switch {
	case t.canceled > 0:
		md.Warningf("Batch was canceled. Re-queue %d page(s): `%s`", t.canceled, strings.Join(result.Requeue, ","))
		md.PlainText("")
	case t.failed > 0:
		md.Cautionf("%d page(s) failed and were not injected.", t.failed)
		md.PlainText("")
	}

	var failedRows [][]string
	for _, p := range result.Pages {
		if !p.Succeeded() && !p.Canceled {
			failedRows = append(failedRows, []string{"`" + p.PageID + "`", truncateString(p.ErrorMessage, 80)})
		}
	}
	if len(failedRows) > 0 {
		md.H2("Failed Pages")
		md.PlainText("")
		md.Table(markdown.TableSet{Header: []string{"Page", "Error"}, Rows: failedRows})
		md.PlainText("")
	}

	for _, r := range result.Reports {
		w.writeScope(md, r, 2)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) heading(md *markdown.Markdown, level int, text string) {
	switch level {
	case 2:
		md.H2(text)
	default:
		md.H3(text)
	}
	md.PlainText("")
}

// writeScope writes the sections of one scope report.
func (w *MarkdownWriter) writeScope(md *markdown.Markdown, report *model.ValidationReport, level int) {
	w.heading(md, level, "Scope "+report.ScopeID)

	kind := "Topic cluster"
	if !report.Cluster {
		kind = "Onboarding"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Kind", kind},
			{"Validated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Links", strconv.Itoa(len(report.Links))},
			{"Warnings", strconv.Itoa(report.WarningCount())},
		},
	})
	md.PlainText("")

	w.writeStatusChart(md, report)
	w.writeAlert(md, report)
	w.writePages(md, report, level+1)
	w.writeLinks(md, report, level+1)
}

// writeStatusChart writes a mermaid pie chart of link statuses.
func (w *MarkdownWriter) writeStatusChart(md *markdown.Markdown, report *model.ValidationReport) {
	if len(report.Links) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Status"),
		piechart.WithShowData(true),
	)
	for _, s := range statusOrder {
		if n := report.CountByStatus(s); n > 0 {
			chart.LabelAndIntValue(string(s), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the worst outcome of the scope.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ValidationReport) {
	injected := report.CountByStatus(model.StatusInjected)
	flagged := report.CountByStatus(model.StatusFlagged)

	switch {
	case injected > 0:
		md.Cautionf("%d link(s) failed validation and need review.", injected)
	case flagged > 0:
		md.Warningf("%d link(s) could not be placed.", flagged)
	case report.WarningCount() > 0:
		md.Note("All placed links are verified. Some pages have warnings.")
	default:
		md.Tip("All links are verified.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.ValidationReport, level int) {
	if len(report.Pages) == 0 {
		return
	}
	w.heading(md, level, "Pages")

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		rows[i] = []string{
			"`" + p.PageID + "`",
			string(p.Role),
			strconv.Itoa(p.OutboundLinks),
			string(p.Status),
			joinRules(p.FailedRules),
			dash(strings.Join(p.Warnings, "; ")),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Role", "Links", "Status", "Failed Rules", "Warnings"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, report *model.ValidationReport, level int) {
	if len(report.Links) == 0 {
		return
	}
	w.heading(md, level, "Links")

	rows := make([][]string, len(report.Links))
	for i, l := range report.Links {
		para := "-"
		if l.Link.ParagraphIndex > 0 {
			para = strconv.Itoa(l.Link.ParagraphIndex)
		}
		rows[i] = []string{
			"`" + l.Link.SourcePageID + "`",
			truncateString(l.Link.AnchorText, 40),
			truncateString(l.Link.TargetURL, 50),
			string(l.Link.PlacementMethod),
			para,
			string(l.Status),
			joinRules(l.FailedRules),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Anchor", "Target", "Method", "Paragraph", "Status", "Failed Rules"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, l := range report.Links {
		if l.Status == model.StatusVerified {
			continue
		}
		var details []string
		if l.Link.Reason != "" {
			details = append(details, "reason: "+l.Link.Reason)
		}
		for _, o := range l.Outcomes {
			if !o.Passed {
				details = append(details, fmt.Sprintf("%s: %s", o.Rule, o.Detail))
			}
		}
		if len(details) > 0 {
			md.Details(fmt.Sprintf("%s -> %s", l.Link.AnchorText, l.Link.TargetURL), strings.Join(details, "\n"))
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by linkweaver*")
}

func joinRules(rules []model.RuleName) string {
	if len(rules) == 0 {
		return "-"
	}
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
