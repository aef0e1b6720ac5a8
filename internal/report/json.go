package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/linkweaver/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the reports are plain structs with no streaming or
// performance needs.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one validation report in JSON format.
func (w *JSONWriter) Write(report *model.ValidationReport) (int, error) {
	return w.writeJSON(report)
}

// WriteBatch outputs a batch result in JSON format.
func (w *JSONWriter) WriteBatch(result *model.BatchResult) (int, error) {
	return w.writeJSON(result)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps output with the version of linkweaver that produced it.
//
// Design decision: We wrap the report rather than adding a version field to
// the model because the stored reports must not change shape between
// releases; only the output envelope does.
type JSONReport struct {
	// Version is the linkweaver version that generated this report.
	Version string `json:"version"`

	// Batch is set when a whole batch is written.
	Batch *model.BatchResult `json:"batch,omitempty"`

	// Report is set when a single scope is written.
	Report *model.ValidationReport `json:"report,omitempty"`
}

// FullJSONWriter outputs reports inside a JSONReport envelope.
type FullJSONWriter struct {
	*JSONWriter

	// version is the linkweaver version string.
	version string
}

// NewFullJSONWriter creates a writer for reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs one validation report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.ValidationReport) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Report: report})
}

// WriteBatch outputs a batch result wrapped with metadata.
func (w *FullJSONWriter) WriteBatch(result *model.BatchResult) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Batch: result})
}
