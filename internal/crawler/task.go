package crawler

import (
	"context"
	"net/url"
	"time"

	"github.com/nao1215/bookbinder/internal/model"
)

// taskState identifies where a fetch task is in its lifecycle.
type taskState int

const (
	// statePending is the state between spawn and acquiring a limiter
	// slot.
	statePending taskState = iota
	// stateAcquired means the task holds a limiter slot but has not yet
	// claimed its URL.
	stateAcquired
	// stateClaimed means the task owns its URL in the visited set.
	stateClaimed
	// stateRejected is terminal: another task already claimed the URL.
	stateRejected
	// stateFetching means the fetcher call is in flight.
	stateFetching
	// stateEmitted is terminal: the chapter reached the collector, and
	// at most one continuation task was spawned.
	stateEmitted
	// stateFailed is terminal: the fetch failed or the context was
	// cancelled, and the chain stops at this page.
	stateFailed
)

func (s taskState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAcquired:
		return "acquired"
	case stateClaimed:
		return "claimed"
	case stateRejected:
		return "rejected"
	case stateFetching:
		return "fetching"
	case stateEmitted:
		return "emitted"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// task is one fetch invocation: a single (index, URL) pair driven
// through pending, acquired, claimed or rejected, fetching, and finally
// emitted or failed. The state field is written only by the task's own
// goroutine.
type task struct {
	walker *Walker
	index  int
	url    *url.URL
	state  taskState
}

// run drives the task to a terminal state. The limiter slot is released
// on every exit path after a successful acquire.
func (t *task) run(ctx context.Context) {
	if err := t.walker.limiter.acquire(ctx); err != nil {
		// Cancelled while waiting for a slot. Nothing was claimed or
		// emitted, so there is nothing to undo.
		t.state = stateFailed
		t.walker.recordFailure(t.index, t.url, err)
		return
	}
	defer t.walker.limiter.release()
	t.state = stateAcquired

	if !t.claim() {
		return
	}

	page, err := t.fetch(ctx)
	if err != nil {
		t.fail(err)
		return
	}

	// Spawn the continuation before emitting so the next fetch overlaps
	// hashing and collection of this chapter.
	if next := t.nextURL(page); next != nil {
		t.walker.spawn(ctx, t.index+1, next)
	}

	t.emit(page)
}

// claim asserts exclusive ownership of the task's URL. A false return
// means another task got there first, which both deduplicates
// convergent branches and terminates cycles.
func (t *task) claim() bool {
	if !t.walker.visited.claim(t.url.String()) {
		t.state = stateRejected
		t.walker.logger.Debug("url already claimed, branch ends",
			"index", t.index, "url", t.url.String())
		return false
	}
	t.state = stateClaimed
	return true
}

// fetch invokes the fetcher. No lock is held here.
func (t *task) fetch(ctx context.Context) (*Page, error) {
	t.state = stateFetching
	t.walker.logger.Debug("fetching chapter",
		"index", t.index, "url", t.url.String())
	return t.walker.fetcher.Fetch(ctx, t.url)
}

// emit hands the fetched chapter to the collector.
func (t *task) emit(page *Page) {
	ch := &model.Chapter{
		Index:     t.index,
		URL:       t.url.String(),
		Title:     page.Title,
		Content:   page.Content,
		FetchedAt: time.Now(),
	}
	ch.ComputeHash()
	t.walker.results <- ch
	t.state = stateEmitted
}

// fail records the truncation point. The chain stops at this page; the
// chapters already collected stay in the run.
func (t *task) fail(err error) {
	t.state = stateFailed
	t.walker.recordFailure(t.index, t.url, err)
	t.walker.logger.Warn("chapter fetch failed, chain stops here",
		"index", t.index, "url", t.url.String(), "error", err)
}

// nextURL applies the chain-length cap to the discovered next link.
func (t *task) nextURL(page *Page) *url.URL {
	if page.Next == nil {
		return nil
	}
	if t.index+1 >= t.walker.maxChapters {
		t.walker.logger.Warn("chain length cap reached, next link not followed",
			"cap", t.walker.maxChapters, "next", page.Next.String())
		return nil
	}
	return page.Next
}
