package model

import (
	"sort"
	"time"
)

// Book is the aggregate result of one stitch run: every chapter collected
// from a single chain, plus run metadata for reporting and archiving.
//
// Design decision: Chapters are stored in completion order as they arrive
// from the collector and sorted on demand. Keeping the raw arrival order
// available makes concurrency bugs visible in tests instead of being
// silently masked by an always-sorted slice.
type Book struct {
	// StartURL is the normalized absolute URL the chain was followed from.
	StartURL string `json:"start_url"`

	// Chapters holds every successfully fetched chapter.
	// Order is completion order until SortChapters is called.
	Chapters []*Chapter `json:"chapters"`

	// FailedURL is the URL of the page whose fetch failed, if any.
	// A linear chain stops permanently at its first failure, so at most
	// one page per run carries a failure.
	FailedURL string `json:"failed_url,omitempty"`

	// FailedIndex is the chain position of the failed page.
	// Only meaningful when FailedURL is non-empty.
	FailedIndex int `json:"failed_index,omitempty"`

	// Error describes why the chain stopped early, if it did.
	Error string `json:"error,omitempty"`

	// OutputPath is where the assembled book was written.
	OutputPath string `json:"output_path,omitempty"`

	// BytesWritten is the size of the assembled document.
	BytesWritten int `json:"bytes_written,omitempty"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewBook creates a Book for the given start URL with the start time set.
func NewBook(startURL string) *Book {
	return &Book{
		StartURL:  startURL,
		Chapters:  make([]*Chapter, 0),
		StartedAt: time.Now(),
	}
}

// SortChapters orders the chapters by ascending index.
// The sort is stable: indices are unique per run, but if a bug ever
// produced duplicates the output would still be deterministic.
func (b *Book) SortChapters() {
	sort.SliceStable(b.Chapters, func(i, j int) bool {
		return b.Chapters[i].Index < b.Chapters[j].Index
	})
}

// Duration returns the wall-clock duration of the run.
// Returns zero if the run has not finished.
func (b *Book) Duration() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Truncated reports whether the chain stopped because of a fetch failure
// rather than reaching a page without a next link.
func (b *Book) Truncated() bool {
	return b.FailedURL != ""
}
