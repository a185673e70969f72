package binder

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/bookbinder/internal/model"
)

const (
	// chapterSeparator is placed between chapter fragments so the
	// chapter boundaries stay visible in the assembled document.
	chapterSeparator = "<hr />\n"

	// documentHeader and documentFooter wrap the joined chapters into a
	// self-contained HTML page with minimal reading styles.
	documentHeader = `<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8"><title>%s</title>
<style>body { font-family: sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; padding: 0 1rem; } h1, h2, h3 { line-height: 1.2; } hr { margin: 3rem 0; }</style>
</head><body>
`
	documentFooter = "\n</body></html>\n"

	// defaultTitle is used when no chapter carries a title.
	defaultTitle = "Bound Book"
)

// Binder assembles chapters into one HTML document.
type Binder struct {
	title string
}

// Option configures a Binder.
type Option func(*Binder)

// WithTitle overrides the document title. By default the title of the
// first chapter is used, or a generic fallback when no chapter has one.
func WithTitle(title string) Option {
	return func(b *Binder) { b.title = title }
}

// NewBinder creates a Binder.
func NewBinder(opts ...Option) *Binder {
	b := &Binder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Assemble sorts the book's chapters by index and joins them into a
// single HTML document. The book's chapter slice is sorted in place.
func (b *Binder) Assemble(book *model.Book) string {
	book.SortChapters()

	fragments := make([]string, 0, len(book.Chapters))
	for _, ch := range book.Chapters {
		fragments = append(fragments, ch.Content)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, documentHeader, html.EscapeString(b.documentTitle(book)))
	sb.WriteString(strings.Join(fragments, chapterSeparator))
	sb.WriteString(documentFooter)
	return sb.String()
}

// Bind assembles the book and writes it to path, creating parent
// directories as needed. The book's OutputPath and BytesWritten fields
// are set on success.
func (b *Binder) Bind(book *model.Book, path string) error {
	doc := b.Assemble(book)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return fmt.Errorf("write assembled book: %w", err)
	}

	book.OutputPath = path
	book.BytesWritten = len(doc)
	return nil
}

func (b *Binder) documentTitle(book *model.Book) string {
	if b.title != "" {
		return b.title
	}
	for _, ch := range book.Chapters {
		if ch.Title != "" {
			return ch.Title
		}
	}
	return defaultTitle
}
