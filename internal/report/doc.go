// Package report renders validation reports and batch results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with tables and a status chart for reviews
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so new output formats never touch the
// types the database stores.
package report
