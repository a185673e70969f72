package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const (
	// defaultContentSelector matches the main content element most
	// chapter sites wrap the text in.
	defaultContentSelector = "main"
	// defaultNextSelector matches the anchor that carries the link to
	// the next chapter.
	defaultNextSelector = `a[title='Next chapter']`
	// defaultMaxBodySize bounds how much of a response body is read.
	defaultMaxBodySize = 10 * 1024 * 1024
	// defaultUserAgent identifies the crawler to the site.
	defaultUserAgent = "bookbinder/1.0 (+https://github.com/nao1215/bookbinder)"
)

// PageFetcher fetches chapter pages over HTTP and extracts the chapter
// body and next-chapter link with CSS selectors. Selectors come from
// site configuration, so arbitrary CSS must work, not just the
// defaults.
type PageFetcher struct {
	client          *http.Client
	userAgent       string
	cookie          string
	headers         map[string]string
	contentSelector string
	nextSelector    string
	maxBodySize     int64
	logger          *slog.Logger
}

var _ Fetcher = (*PageFetcher)(nil)

// PageFetcherOption configures a PageFetcher.
type PageFetcherOption func(*PageFetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) PageFetcherOption {
	return func(f *PageFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithCookie sets a Cookie header sent with every request, for sites
// that gate chapters behind a session.
func WithCookie(cookie string) PageFetcherOption {
	return func(f *PageFetcher) { f.cookie = cookie }
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) PageFetcherOption {
	return func(f *PageFetcher) { f.headers = headers }
}

// WithSelectors overrides the content and next-link selectors. An empty
// string keeps the default for that selector.
func WithSelectors(content, next string) PageFetcherOption {
	return func(f *PageFetcher) {
		if content != "" {
			f.contentSelector = content
		}
		if next != "" {
			f.nextSelector = next
		}
	}
}

// WithMaxBodySize bounds how many bytes of a response body are read.
func WithMaxBodySize(n int64) PageFetcherOption {
	return func(f *PageFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithFetchLogger sets the logger for per-request diagnostics.
func WithFetchLogger(logger *slog.Logger) PageFetcherOption {
	return func(f *PageFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewPageFetcher creates a PageFetcher backed by the given HTTP client.
// The client is injected because timeout and transport policy belong to
// the caller.
func NewPageFetcher(client *http.Client, opts ...PageFetcherOption) *PageFetcher {
	f := &PageFetcher{
		client:          client,
		userAgent:       defaultUserAgent,
		contentSelector: defaultContentSelector,
		nextSelector:    defaultNextSelector,
		maxBodySize:     defaultMaxBodySize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves one chapter page. Failures come back as *FetchError;
// a missing or unresolvable next link is not a failure and yields a
// Page with Next set to nil.
func (f *PageFetcher) Fetch(ctx context.Context, u *url.URL) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: u.String(), Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Kind: KindNetwork,
			URL:  u.String(),
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	// Decode the body to UTF-8 from whatever charset the server
	// declares. Older chapter sites still serve Shift_JIS or GBK.
	body := io.LimitReader(resp.Body, f.maxBodySize)
	reader, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, URL: u.String(), Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, URL: u.String(), Err: err}
	}

	content := doc.Find(f.contentSelector).First()
	if content.Length() == 0 {
		return nil, &FetchError{Kind: KindContentNotFound, URL: u.String()}
	}
	fragment, err := content.Html()
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, URL: u.String(), Err: err}
	}

	page := &Page{
		Content: fragment,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
	}

	// The next link is optional, and an unresolvable href ends the
	// chain the same way a missing link does.
	if href, ok := doc.Find(f.nextSelector).First().Attr("href"); ok {
		next, err := u.Parse(strings.TrimSpace(href))
		if err != nil {
			f.logger.Debug("next link unresolvable, treating as chain end",
				"url", u.String(), "href", href, "error", err)
		} else {
			page.Next = next
		}
	}

	return page, nil
}
