package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/bookbinder/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor handles concurrent stitching of multiple books.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-run execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each start URL.
	// We use a factory so every book gets a fresh pipeline instance
	// with its own output path.
	pipelineFactory func(startURL string) *Pipeline

	// concurrency is the maximum number of books stitched at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed runs.
	// Access is synchronized via mutex.
	results []*model.Book
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets the maximum number of books stitched at
// once. Default is 4 if not specified. This bounds whole books, not
// page fetches; each book additionally respects its own fetch limiter.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called once per start URL so pipeline
// state never leaks between books.
func NewBatchProcessor(pipelineFactory func(startURL string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
		results:         make([]*model.Book, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch stitches multiple books concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each start URL gets its own goroutine, but only 'concurrency'
// goroutines run simultaneously.
//
// Returns all runs in start-URL order, even the ones that failed; a
// failed run carries its error in the book. The error return indicates
// cancellation, not per-book failures.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, startURLs []string) ([]*model.Book, error) {
	bp.logger.Info("starting batch stitch",
		"total_books", len(startURLs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	bp.results = make([]*model.Book, len(startURLs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, startURL := range startURLs {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("stitching book",
				"start_url", startURL,
				"index", i+1,
				"total", len(startURLs),
			)

			book := model.NewBook(startURL)

			p := bp.pipelineFactory(startURL)
			err := p.Execute(ctx, book)

			// Store result regardless of error; the book carries the
			// failure details.
			bp.mu.Lock()
			bp.results[i] = book
			bp.mu.Unlock()

			if err != nil {
				if book.Error == "" {
					book.Error = err.Error()
				}
				bp.logger.Warn("stitch failed",
					"start_url", startURL,
					"error", err,
				)
				// Don't return the error to errgroup - the other books
				// should still be stitched.
				return nil
			}

			bp.logger.Info("stitch completed",
				"start_url", startURL,
				"chapters", len(book.Chapters),
			)

			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch stitch complete",
		"total_books", len(startURLs),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}
