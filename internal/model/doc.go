// Package model defines the core data structures used throughout bookbinder.
//
// This package contains the following main types:
//   - Chapter: One fetched page of a chapter chain with its content fragment
//   - Book: The aggregate result of one stitch run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, binder, report, database) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage. Chapter content is excluded from JSON because fragments
// can be megabytes in size; the content hash is stored instead.
package model
