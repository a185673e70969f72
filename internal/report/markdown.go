package report

import (
	"io"
	"strconv"

	"github.com/nao1215/bookbinder/internal/model"
	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs run reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(book *model.Book) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, book)
	w.writeChapters(md, book)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table and status alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, book *model.Book) {
	md.H1("Bookbinder Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + book.StartURL + "`"},
			{"Run Date", book.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", book.Duration().Round(timeRounding).String()},
			{"Chapters", strconv.Itoa(len(book.Chapters))},
			{"Output", outputCell(book)},
			{"Status", statusCell(book)},
		},
	})
	md.PlainText("")

	if book.Truncated() {
		md.Warningf(
			"The chain stopped early at chapter %d (%s): %s. The assembled book contains only the chapters before the failure.",
			book.FailedIndex, book.FailedURL, book.Error,
		)
	} else {
		md.Tip("The whole chain was collected.")
	}
	md.PlainText("")
}

func outputCell(book *model.Book) string {
	if book.OutputPath == "" {
		return "-"
	}
	return "`" + book.OutputPath + "` (" + strconv.Itoa(book.BytesWritten) + " bytes)"
}

func statusCell(book *model.Book) string {
	if book.Truncated() {
		return "⚠️ Truncated"
	}
	return "✅ Complete"
}

// writeChapters writes the per-chapter table.
func (w *MarkdownWriter) writeChapters(md *markdown.Markdown, book *model.Book) {
	md.H2("Chapters")
	md.PlainText("")

	if len(book.Chapters) == 0 {
		md.PlainText("No chapters were collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(book.Chapters))
	for i, ch := range book.Chapters {
		title := ch.Title
		if title == "" {
			title = "-"
		}
		hash := ch.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows[i] = []string{
			strconv.Itoa(ch.Index),
			truncateString(title, 50),
			truncateString(ch.URL, 60),
			"`" + hash + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Index", "Title", "URL", "Content Hash"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [bookbinder](https://github.com/nao1215/bookbinder)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
