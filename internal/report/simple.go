package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/bookbinder/internal/model"
)

// timeRounding keeps durations readable in reports.
const timeRounding = 10 * time.Millisecond

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display after a stitch run.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-chapter listing in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the per-chapter listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(book *model.Book) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, book)
	w.writeSummary(&sb, book)
	if w.verbose {
		w.writeChapters(&sb, book)
	}

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, book *model.Book) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        BOOKBINDER RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Start URL:   %s\n", book.StartURL))
	sb.WriteString(fmt.Sprintf("Run Date:    %s\n", book.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:    %s\n", book.Duration().Round(timeRounding)))

	if book.Truncated() {
		sb.WriteString(fmt.Sprintf("Status:      TRUNCATED at chapter %d (%s)\n", book.FailedIndex, book.FailedURL))
		sb.WriteString(fmt.Sprintf("Reason:      %s\n", book.Error))
	} else {
		sb.WriteString("Status:      Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the collection summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, book *model.Book) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Chapters collected: %d\n", len(book.Chapters)))
	if book.OutputPath != "" {
		sb.WriteString(fmt.Sprintf("  Output:             %s\n", book.OutputPath))
		sb.WriteString(fmt.Sprintf("  Size:               %d bytes\n", book.BytesWritten))
	}
	sb.WriteString("\n")
}

// writeChapters writes the per-chapter listing.
func (w *SimpleWriter) writeChapters(sb *strings.Builder, book *model.Book) {
	if len(book.Chapters) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CHAPTERS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, ch := range book.Chapters {
		title := ch.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("  [%3d] %s\n", ch.Index, title))
		sb.WriteString(fmt.Sprintf("        %s\n", ch.URL))
	}
	sb.WriteString("\n")
}
