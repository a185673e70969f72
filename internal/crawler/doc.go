// Package crawler follows a chapter chain from a start URL, fetching
// pages concurrently while chapter order is preserved through indices
// assigned at link discovery time.
//
// A chapter chain is a singly linked list of pages: each page may carry
// one "next chapter" link, so the URL of page i+1 is unknown until page
// i has been fetched. The Walker overlaps the fetch of page i+1 with
// the in-flight fetches of earlier pages, bounded by a fetch limiter,
// and hands completed chapters to a collector channel in whatever order
// they finish. Callers restore reading order by sorting on the chapter
// index.
//
// The Fetcher interface isolates the page retrieval and link extraction
// so the walk logic can be tested against synthetic chains.
package crawler
