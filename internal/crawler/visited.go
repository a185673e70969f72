package crawler

import "sync"

// visitedSet tracks which URLs have been claimed by a fetch task. The
// first claimant of a URL wins the exclusive right to fetch it; every
// later claim of the same URL fails. This is what terminates cyclic
// chains: a "next" link pointing back at an earlier page fails the
// claim and the branch ends without a fetch.
//
// URL identity is the exact absolute URL string as discovered. Two
// spellings of the same page that differ only by a trailing slash or
// query order are treated as distinct pages. Collapsing spellings would
// need the claim to be revalidated after the fetch, and the claim lock
// must never be held across network I/O, so the raw string stands.
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]struct{})}
}

// claim atomically test-and-inserts the URL and returns true exactly
// once per distinct URL. The critical section covers only the map
// operations; the lock is never held across network I/O.
func (v *visitedSet) claim(rawURL string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[rawURL]; ok {
		return false
	}
	v.seen[rawURL] = struct{}{}
	return true
}

// size reports how many URLs have been claimed so far.
func (v *visitedSet) size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
