package report

import (
	"io"

	"github.com/nao1215/linkweaver/internal/model"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. The inject command writes a whole batch while the
// validate command writes a single scope, so both entry points exist.
type Writer interface {
	// Write outputs one scope's validation report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ValidationReport) (int, error)

	// WriteBatch outputs a batch result with the reports of every scope it
	// touched.
	WriteBatch(result *model.BatchResult) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ValidationReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the batch result to all configured Writers.
func (m *MultiWriter) WriteBatch(result *model.BatchResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusOrder is the order in which statuses are listed in summaries.
var statusOrder = []model.Status{
	model.StatusVerified,
	model.StatusInjected,
	model.StatusFlagged,
	model.StatusPlanned,
}

// batchTotals summarizes the page results of a batch.
type batchTotals struct {
	pages    int
	failed   int
	canceled int
	requeued int
	links    int
}

func totals(result *model.BatchResult) batchTotals {
	t := batchTotals{pages: len(result.Pages)}
	for _, p := range result.Pages {
		switch {
		case p.Canceled:
			t.canceled++
		case p.Err != nil || p.ErrorMessage != "":
			t.failed++
		}
		if p.Requeued {
			t.requeued++
		}
		t.links += len(p.Links)
	}
	return t
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
