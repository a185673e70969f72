// Package log provides logging utilities for bookbinder, built on top of
// the standard slog package.
//
// The main feature is the TruncatingHandler, a handler wrapper that caps
// oversized string attribute values before they reach the underlying
// handler. Chapter fragments and raw page bodies can run to megabytes;
// logging them whole would make verbose output unusable and could blow up
// log storage during long runs.
//
// # Usage
//
//	// Create a logger (verbose=true enables Debug level)
//	logger := log.NewLogger(os.Stderr, true)
//
//	// Long values are truncated automatically
//	logger.Debug("chapter extracted",
//	    "url", "http://example.com/ch1",
//	    "content", fragment, // Truncated to MaxAttrValueLen with a marker
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
