// Package report provides run report generation and output.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown output for documentation and sharing
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate report writing from the run data
// structures (which are in the model package) so new output formats can
// be added without touching the core data structures. Writers implement
// the Writer interface and can be composed for multi-format output.
package report
