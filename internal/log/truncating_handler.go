package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"
)

// MaxAttrValueLen is the maximum length in bytes of a string attribute
// value before it is truncated. Long enough to keep error messages and
// URLs intact, short enough that a logged chapter fragment cannot flood
// the output.
const MaxAttrValueLen = 512

// TruncatingHandler wraps an slog.Handler and caps oversized string
// attribute values. Truncated values end with a marker noting how many
// bytes were dropped.
//
// Design decision: We use a handler wrapper rather than truncating at
// call sites because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. Call sites cannot forget to truncate
type TruncatingHandler struct {
	// handler is the underlying slog handler that receives capped records.
	handler slog.Handler

	// maxLen is the per-value byte cap.
	maxLen int
}

// NewTruncatingHandler creates a TruncatingHandler wrapping the given handler.
// If handler is nil, the returned handler wraps slog.Default().Handler().
func NewTruncatingHandler(handler slog.Handler) *TruncatingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &TruncatingHandler{handler: handler, maxLen: MaxAttrValueLen}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *TruncatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle caps the record's attributes and passes it to the underlying handler.
func (h *TruncatingHandler) Handle(ctx context.Context, r slog.Record) error {
	capped := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		capped.AddAttrs(h.truncateAttr(a))
		return true
	})

	return h.handler.Handle(ctx, capped)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are capped before being added.
func (h *TruncatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cappedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cappedAttrs[i] = h.truncateAttr(a)
	}
	return &TruncatingHandler{handler: h.handler.WithAttrs(cappedAttrs), maxLen: h.maxLen}
}

// WithGroup returns a new handler with the given group name.
func (h *TruncatingHandler) WithGroup(name string) slog.Handler {
	return &TruncatingHandler{handler: h.handler.WithGroup(name), maxLen: h.maxLen}
}

// truncateAttr caps a single attribute, recursively handling groups.
func (h *TruncatingHandler) truncateAttr(a slog.Attr) slog.Attr {
	// Handle groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		cappedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			cappedAttrs[i] = h.truncateAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(cappedAttrs...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	v := a.Value.String()
	if len(v) <= h.maxLen {
		return a
	}

	// Cut at a rune boundary so the truncated value stays valid UTF-8
	cut := h.maxLen
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}

	truncated := fmt.Sprintf("%s...(%d bytes truncated)", v[:cut], len(v)-cut)
	return slog.String(a.Key, truncated)
}

// NewLogger creates a new slog.Logger with attribute truncation.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//
// Returns a *slog.Logger that can be used with slog.SetDefault() or passed
// to components that accept *slog.Logger.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	textHandler := slog.NewTextHandler(w, opts)
	return slog.New(NewTruncatingHandler(textHandler))
}
