package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/bookbinder/internal/binder"
	"github.com/nao1215/bookbinder/internal/crawler"
	"github.com/nao1215/bookbinder/internal/database"
	"github.com/nao1215/bookbinder/internal/model"
	"github.com/nao1215/bookbinder/internal/report"
)

// WalkStep follows the chapter chain from the book's start URL and
// fills in the collected chapters.
//
// Design decision: The walk is a step rather than code in the command
// layer so batch mode and single-run mode share one execution path.
type WalkStep struct {
	// fetcher retrieves and parses individual pages.
	fetcher crawler.Fetcher

	// concurrency caps simultaneous fetches, zero for the default.
	concurrency int

	// maxChapters caps the chain length, zero for the default.
	maxChapters int

	// logger for structured logging.
	logger *slog.Logger
}

// WalkStepOption configures a WalkStep.
type WalkStepOption func(*WalkStep)

// WithWalkConcurrency caps simultaneous fetches.
func WithWalkConcurrency(n int) WalkStepOption {
	return func(s *WalkStep) { s.concurrency = n }
}

// WithWalkMaxChapters caps the chain length.
func WithWalkMaxChapters(n int) WalkStepOption {
	return func(s *WalkStep) { s.maxChapters = n }
}

// WithWalkLogger sets a custom logger for the walk step.
func WithWalkLogger(logger *slog.Logger) WalkStepOption {
	return func(s *WalkStep) { s.logger = logger }
}

// NewWalkStep creates a chain-walking step using the given fetcher.
func NewWalkStep(fetcher crawler.Fetcher, opts ...WalkStepOption) *WalkStep {
	s := &WalkStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *WalkStep) Name() string {
	return "walk_chain"
}

// Do walks the chain and records the result in the book. A chain that
// stops at a failed page is recorded in the book, not returned as an
// error; only an unusable start URL or cancellation fail the step.
func (s *WalkStep) Do(ctx context.Context, book *model.Book) error {
	start, err := url.Parse(book.StartURL)
	if err != nil {
		return fmt.Errorf("parse start url %q: %w", book.StartURL, err)
	}
	if !start.IsAbs() {
		return fmt.Errorf("start url %q is not absolute", book.StartURL)
	}

	walker := crawler.NewWalker(s.fetcher,
		crawler.WithConcurrency(s.concurrency),
		crawler.WithMaxChapters(s.maxChapters),
		crawler.WithLogger(s.logger),
	)

	chapters, err := walker.Walk(ctx, start)
	book.Chapters = chapters
	book.FinishedAt = time.Now()

	if index, failedURL, failErr := walker.Failure(); failErr != nil {
		book.FailedIndex = index
		book.FailedURL = failedURL
		book.Error = failErr.Error()
	}

	if err != nil {
		return fmt.Errorf("walk chain from %s: %w", book.StartURL, err)
	}
	return nil
}

// BindStep assembles the collected chapters and writes the document.
type BindStep struct {
	// binder assembles the document.
	binder *binder.Binder

	// outputPath is where the document is written.
	outputPath string
}

// NewBindStep creates a document assembly step.
func NewBindStep(b *binder.Binder, outputPath string) *BindStep {
	return &BindStep{binder: b, outputPath: outputPath}
}

// Name returns the step name.
func (s *BindStep) Name() string {
	return "bind_book"
}

// Do writes the assembled document. Failing to persist the document is
// fatal for the run.
func (s *BindStep) Do(_ context.Context, book *model.Book) error {
	if err := s.binder.Bind(book, s.outputPath); err != nil {
		return fmt.Errorf("bind %s: %w", s.outputPath, err)
	}
	return nil
}

// ArchiveStep saves the finished run to the run history database.
type ArchiveStep struct {
	// db is the run archive.
	db *database.BookDB

	// logger for structured logging.
	logger *slog.Logger
}

// NewArchiveStep creates a run archiving step.
func NewArchiveStep(db *database.BookDB, logger *slog.Logger) *ArchiveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive_run"
}

// Do archives the run.
func (s *ArchiveStep) Do(ctx context.Context, book *model.Book) error {
	id, err := s.db.SaveRun(ctx, book)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	s.logger.Info("run archived", "run_id", id, "start_url", book.StartURL)
	return nil
}

// ReportStep emits the run report through the configured writer.
type ReportStep struct {
	// writer receives the run report; typically a MultiWriter.
	writer report.Writer
}

// NewReportStep creates a report emission step.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "write_report"
}

// Do writes the run report.
func (s *ReportStep) Do(_ context.Context, book *model.Book) error {
	if _, err := s.writer.Write(book); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
