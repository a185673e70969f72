package crawler

import (
	"context"
	"fmt"
	"net/url"
)

// Page is the result of fetching and extracting one chapter page.
type Page struct {
	// Content is the inner HTML of the chapter body element.
	Content string
	// Title is the page title, empty when the page has none.
	Title string
	// Next is the absolute URL of the next chapter, or nil when the
	// chain ends at this page. An unresolvable next href is reported as
	// nil, not as an error.
	Next *url.URL
}

// Fetcher retrieves a single chapter page and discovers the link to the
// next one. Implementations do not retry and do not follow the link
// themselves; walking the chain is the Walker's job.
//
// Fetch returns a *FetchError for every failure so callers can
// classify it with errors.As.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*Page, error)
}

// FetchErrorKind classifies fetch failures.
type FetchErrorKind int

const (
	// KindNetwork covers transport failures: connection errors,
	// timeouts, and non-2xx HTTP statuses.
	KindNetwork FetchErrorKind = iota
	// KindDecode covers response bodies that could not be read or
	// decoded into an HTML document.
	KindDecode
	// KindContentNotFound means the page decoded fine but the content
	// selector matched nothing.
	KindContentNotFound
)

// String returns a human-readable name for the failure kind.
func (k FetchErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network failure"
	case KindDecode:
		return "decode failure"
	case KindContentNotFound:
		return "content not found"
	default:
		return "unknown failure"
	}
}

// FetchError is the typed failure returned by a Fetcher. The Walker
// treats every kind the same way (stop the chain at this page, keep
// what was collected), but run reports distinguish them.
type FetchError struct {
	// Kind classifies the failure.
	Kind FetchErrorKind
	// URL is the page that failed.
	URL string
	// Err is the underlying cause, nil for failures with no wrapped
	// error such as a selector that matched nothing.
	Err error
}

// Error returns the error message.
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }
