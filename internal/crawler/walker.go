package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/nao1215/bookbinder/internal/model"
)

const (
	// defaultConcurrency caps simultaneous fetches when WithConcurrency
	// is not given.
	defaultConcurrency = 50
	// defaultMaxChapters caps the chain length when WithMaxChapters is
	// not given. A chain this long almost certainly loops through URLs
	// the visited set cannot recognize as duplicates.
	defaultMaxChapters = 10000
	// resultBuffer sizes the collector channel. Fetch tasks block on
	// emit only when the collector falls this far behind.
	resultBuffer = 100
)

// Walker follows a chapter chain from a start URL. All shared run state
// lives in the Walker value: the fetch limiter, the visited set, the
// collector channel, and the outstanding-task counter. A Walker is
// single-use; create one per chain.
type Walker struct {
	fetcher     Fetcher
	limiter     *limiter
	visited     *visitedSet
	maxChapters int
	logger      *slog.Logger

	results chan *model.Chapter
	tasks   sync.WaitGroup

	mu          sync.Mutex
	failedIndex int
	failedURL   string
	failErr     error
}

// Option configures a Walker.
type Option func(*Walker)

// WithConcurrency caps the number of simultaneous fetches. Values below
// one keep the default.
func WithConcurrency(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.limiter = newLimiter(n)
		}
	}
}

// WithMaxChapters caps the chain length. Values below one keep the
// default.
func WithMaxChapters(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxChapters = n
		}
	}
}

// WithLogger sets the logger used for per-page progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWalker creates a Walker that fetches pages with the given fetcher.
func NewWalker(fetcher Fetcher, opts ...Option) *Walker {
	w := &Walker{
		fetcher:     fetcher,
		limiter:     newLimiter(defaultConcurrency),
		visited:     newVisitedSet(),
		maxChapters: defaultMaxChapters,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk follows the chain from start and returns every collected
// chapter. Chapters arrive in completion order; callers sort by
// Chapter.Index to restore reading order.
//
// Walk returns once the crawl has quiesced: every spawned task reached
// a terminal state and no task can spawn another. A per-page fetch
// failure stops the chain at that page but is not a Walk error; it is
// reported through Failure. The returned error is non-nil only when
// the context was cancelled before quiescence.
func (w *Walker) Walk(ctx context.Context, start *url.URL) ([]*model.Chapter, error) {
	w.results = make(chan *model.Chapter, resultBuffer)

	w.spawn(ctx, 0, start)

	// Close the collector once the outstanding-task counter reaches
	// zero. Every spawn increments the counter before its goroutine
	// starts, and a continuation is spawned before the parent task
	// decrements, so the counter cannot hit zero with work pending.
	go func() {
		w.tasks.Wait()
		close(w.results)
	}()

	chapters := make([]*model.Chapter, 0, resultBuffer)
	for ch := range w.results {
		chapters = append(chapters, ch)
	}

	w.logger.Info("chain walk finished",
		"chapters", len(chapters), "urls_claimed", w.visited.size())
	return chapters, ctx.Err()
}

// spawn schedules one fetch task for a discovered URL. The task counter
// is incremented synchronously, before the goroutine starts.
func (w *Walker) spawn(ctx context.Context, index int, u *url.URL) {
	w.tasks.Add(1)
	t := &task{walker: w, index: index, url: u}
	go func() {
		defer w.tasks.Done()
		t.run(ctx)
	}()
}

// recordFailure notes the page where the chain stopped. Only the first
// failure is kept.
func (w *Walker) recordFailure(index int, u *url.URL, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failErr != nil {
		return
	}
	w.failedIndex = index
	w.failedURL = u.String()
	w.failErr = err
}

// Failure reports where the chain stopped early. err is nil when every
// fetched page succeeded.
func (w *Walker) Failure() (index int, url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failedIndex, w.failedURL, w.failErr
}
