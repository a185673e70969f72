package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoStartURL is returned when no chain start URL is specified.
	ErrNoStartURL = errors.New("no start URL specified: provide one or more chapter URLs as arguments")

	// ErrInvalidConcurrency is returned when the fetch concurrency is not
	// positive. Zero concurrency would deadlock the chain walker on its
	// first slot acquisition.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxChapters is returned when the chain length cap is not
	// positive. A cap of zero would reject even the start page.
	ErrInvalidMaxChapters = errors.New("invalid max chapters: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no books are stitched at all.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to apply the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoOutputPath is returned when the output path is empty.
	ErrNoOutputPath = errors.New("no output path specified")
)
