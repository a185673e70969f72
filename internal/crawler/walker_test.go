package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakePage is one node of a synthetic chapter chain.
type fakePage struct {
	content string
	title   string
	next    string
}

// chainFetcher serves an in-memory chain and records how it was used.
type chainFetcher struct {
	pages map[string]fakePage
	fail  map[string]error
	delay time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu    sync.Mutex
	calls map[string]int
}

func newChainFetcher(pages map[string]fakePage) *chainFetcher {
	return &chainFetcher{
		pages: pages,
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *chainFetcher) Fetch(_ context.Context, u *url.URL) (*Page, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if n <= max || f.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[u.String()]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if err, ok := f.fail[u.String()]; ok {
		return nil, err
	}
	p, ok := f.pages[u.String()]
	if !ok {
		return nil, &FetchError{Kind: KindNetwork, URL: u.String(), Err: errors.New("no such page")}
	}
	page := &Page{Content: p.content, Title: p.title}
	if p.next != "" {
		next, err := url.Parse(p.next)
		if err != nil {
			return nil, err
		}
		page.Next = next
	}
	return page, nil
}

func (f *chainFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

// linearChain builds a chain of n pages under http://example.test/ch/i.
func linearChain(n int) map[string]fakePage {
	pages := make(map[string]fakePage, n)
	for i := 0; i < n; i++ {
		p := fakePage{
			content: fmt.Sprintf("<p>chapter %d</p>", i),
			title:   fmt.Sprintf("Chapter %d", i),
		}
		if i < n-1 {
			p.next = chainURL(i + 1)
		}
		pages[chainURL(i)] = p
	}
	return pages
}

func chainURL(i int) string {
	return fmt.Sprintf("http://example.test/ch/%d", i)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestWalker_Walk(t *testing.T) {
	t.Parallel()

	t.Run("collects a full chain with correct indices", func(t *testing.T) {
		t.Parallel()
		fetcher := newChainFetcher(linearChain(3))
		w := NewWalker(fetcher)

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 3 {
			t.Fatalf("got %d chapters, want 3", len(chapters))
		}

		sort.SliceStable(chapters, func(i, j int) bool {
			return chapters[i].Index < chapters[j].Index
		})
		for i, ch := range chapters {
			if ch.Index != i {
				t.Errorf("chapter %d: Index = %d, want %d", i, ch.Index, i)
			}
			if want := fmt.Sprintf("<p>chapter %d</p>", i); ch.Content != want {
				t.Errorf("chapter %d: Content = %q, want %q", i, ch.Content, want)
			}
			if ch.URL != chainURL(i) {
				t.Errorf("chapter %d: URL = %q, want %q", i, ch.URL, chainURL(i))
			}
			if ch.Hash == "" {
				t.Errorf("chapter %d: Hash is empty", i)
			}
		}
		if _, _, err := w.Failure(); err != nil {
			t.Errorf("Failure() = %v, want nil", err)
		}
	})

	t.Run("single page chain", func(t *testing.T) {
		t.Parallel()
		fetcher := newChainFetcher(linearChain(1))
		w := NewWalker(fetcher)

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 1 {
			t.Fatalf("got %d chapters, want 1", len(chapters))
		}
		if chapters[0].Index != 0 {
			t.Errorf("Index = %d, want 0", chapters[0].Index)
		}
	})

	t.Run("cycle back to the start terminates", func(t *testing.T) {
		t.Parallel()
		pages := linearChain(3)
		last := pages[chainURL(2)]
		last.next = chainURL(0)
		pages[chainURL(2)] = last
		fetcher := newChainFetcher(pages)
		w := NewWalker(fetcher)

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 3 {
			t.Fatalf("got %d chapters, want 3", len(chapters))
		}
		if got := fetcher.callCount(chainURL(0)); got != 1 {
			t.Errorf("start URL fetched %d times, want 1", got)
		}
		if _, _, err := w.Failure(); err != nil {
			t.Errorf("Failure() = %v, want nil; a cycle is a normal chain end", err)
		}
	})

	t.Run("self loop terminates", func(t *testing.T) {
		t.Parallel()
		pages := map[string]fakePage{
			chainURL(0): {content: "<p>only</p>", next: chainURL(0)},
		}
		fetcher := newChainFetcher(pages)
		w := NewWalker(fetcher)

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 1 {
			t.Fatalf("got %d chapters, want 1", len(chapters))
		}
	})

	t.Run("cap of one completes without deadlock", func(t *testing.T) {
		t.Parallel()
		// A continuation task waits for a limiter slot while its parent
		// still holds one. The parent must release before the child can
		// run, so a cap of one only works if release does not depend on
		// the child finishing.
		fetcher := newChainFetcher(linearChain(10))
		fetcher.delay = time.Millisecond
		w := NewWalker(fetcher, WithConcurrency(1))

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 10 {
			t.Fatalf("got %d chapters, want 10", len(chapters))
		}
		if max := fetcher.maxSeen.Load(); max > 1 {
			t.Errorf("max in-flight fetches = %d, want <= 1", max)
		}
	})

	t.Run("fetch failure truncates but keeps earlier chapters", func(t *testing.T) {
		t.Parallel()
		fetcher := newChainFetcher(linearChain(5))
		wantErr := &FetchError{Kind: KindNetwork, URL: chainURL(3), Err: errors.New("connection refused")}
		fetcher.fail[chainURL(3)] = wantErr
		w := NewWalker(fetcher)

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 3 {
			t.Fatalf("got %d chapters, want 3 (indices 0..2)", len(chapters))
		}
		sort.SliceStable(chapters, func(i, j int) bool {
			return chapters[i].Index < chapters[j].Index
		})
		for i, ch := range chapters {
			if ch.Index != i {
				t.Errorf("chapter %d: Index = %d, want %d", i, ch.Index, i)
			}
		}

		index, failedURL, failErr := w.Failure()
		if failErr == nil {
			t.Fatal("Failure() err is nil, want recorded failure")
		}
		if index != 3 {
			t.Errorf("Failure() index = %d, want 3", index)
		}
		if failedURL != chainURL(3) {
			t.Errorf("Failure() url = %q, want %q", failedURL, chainURL(3))
		}
		var fe *FetchError
		if !errors.As(failErr, &fe) {
			t.Fatalf("Failure() err = %T, want *FetchError", failErr)
		}
		if fe.Kind != KindNetwork {
			t.Errorf("Kind = %v, want %v", fe.Kind, KindNetwork)
		}
		if got := fetcher.callCount(chainURL(4)); got != 0 {
			t.Errorf("page after the failure fetched %d times, want 0", got)
		}
	})

	t.Run("chain length cap stops the walk", func(t *testing.T) {
		t.Parallel()
		fetcher := newChainFetcher(linearChain(5))
		w := NewWalker(fetcher, WithMaxChapters(3))

		chapters, err := w.Walk(context.Background(), mustParse(t, chainURL(0)))
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(chapters) != 3 {
			t.Fatalf("got %d chapters, want 3", len(chapters))
		}
		if got := fetcher.callCount(chainURL(3)); got != 0 {
			t.Errorf("page beyond the cap fetched %d times, want 0", got)
		}
		if _, _, err := w.Failure(); err != nil {
			t.Errorf("Failure() = %v, want nil; the cap is not a failure", err)
		}
	})

	t.Run("context cancellation returns", func(t *testing.T) {
		t.Parallel()
		fetcher := newChainFetcher(linearChain(100))
		fetcher.delay = 5 * time.Millisecond
		w := NewWalker(fetcher, WithConcurrency(1))

		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
		defer cancel()

		done := make(chan struct{})
		var walkErr error
		go func() {
			defer close(done)
			_, walkErr = w.Walk(ctx, mustParse(t, chainURL(0)))
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Walk did not return after cancellation")
		}
		if !errors.Is(walkErr, context.DeadlineExceeded) {
			t.Errorf("Walk() error = %v, want context.DeadlineExceeded", walkErr)
		}
	})
}

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	t.Run("first claim wins, later claims fail", func(t *testing.T) {
		t.Parallel()
		v := newVisitedSet()
		if !v.claim("http://example.test/a") {
			t.Error("first claim returned false")
		}
		if v.claim("http://example.test/a") {
			t.Error("second claim returned true")
		}
		if v.size() != 1 {
			t.Errorf("size() = %d, want 1", v.size())
		}
	})

	t.Run("spellings are not collapsed", func(t *testing.T) {
		t.Parallel()
		v := newVisitedSet()
		if !v.claim("http://example.test/a") {
			t.Error("claim of bare URL returned false")
		}
		if !v.claim("http://example.test/a/") {
			t.Error("trailing-slash spelling should claim independently")
		}
	})

	t.Run("exactly one concurrent claimant wins", func(t *testing.T) {
		t.Parallel()
		v := newVisitedSet()
		const claimants = 32
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v.claim("http://example.test/contested") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		if wins.Load() != 1 {
			t.Errorf("%d claimants won, want exactly 1", wins.Load())
		}
	})
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	t.Run("message includes kind and url", func(t *testing.T) {
		t.Parallel()
		err := &FetchError{Kind: KindContentNotFound, URL: "http://example.test/ch/1"}
		want := "fetch http://example.test/ch/1: content not found"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("wrapped cause is reachable", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("tls handshake failed")
		err := &FetchError{Kind: KindNetwork, URL: "http://example.test", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("errors.Is() did not find the wrapped cause")
		}
	})

	t.Run("kind strings", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			kind FetchErrorKind
			want string
		}{
			{KindNetwork, "network failure"},
			{KindDecode, "decode failure"},
			{KindContentNotFound, "content not found"},
			{FetchErrorKind(99), "unknown failure"},
		}
		for _, tt := range tests {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		}
	})
}

func TestTaskState_String(t *testing.T) {
	t.Parallel()

	states := map[taskState]string{
		statePending:   "pending",
		stateAcquired:  "acquired",
		stateClaimed:   "claimed",
		stateRejected:  "rejected",
		stateFetching:  "fetching",
		stateEmitted:   "emitted",
		stateFailed:    "failed",
		taskState(127): "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("taskState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
