// Package main provides the entry point for the bookbinder CLI.
//
// Bookbinder follows a chain of "next chapter" links from a start URL,
// fetches the chapters concurrently, and binds them into a single HTML
// document in reading order.
//
// Usage:
//
//	bookbinder stitch <start-url>
//	bookbinder stitch <start-url-1> <start-url-2> -o books/
//
// See --help for all available options.
package main

// main is the entry point for bookbinder.
func main() {
	Execute()
}
