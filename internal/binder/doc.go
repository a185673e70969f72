// Package binder assembles the chapters collected by a chain walk into
// a single self-contained HTML document and writes it to disk. Chapters
// are sorted by their chain index before assembly, so the document
// reads in discovery order no matter how the concurrent fetches
// interleaved.
package binder
