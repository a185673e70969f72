package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestTruncatingHandler tests attribute value truncation.
func TestTruncatingHandler(t *testing.T) {
	t.Parallel()

	t.Run("short values pass through unchanged", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		logger.Info("fetched", "url", "http://example.com/ch1")

		out := buf.String()
		if !strings.Contains(out, "http://example.com/ch1") {
			t.Errorf("expected URL in output, got %q", out)
		}
		if strings.Contains(out, "truncated") {
			t.Errorf("short value should not be truncated: %q", out)
		}
	})

	t.Run("long values are truncated with marker", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		fragment := strings.Repeat("a", 4096)
		logger.Debug("chapter extracted", "content", fragment)

		out := buf.String()
		if strings.Contains(out, fragment) {
			t.Error("expected long value to be truncated")
		}
		if !strings.Contains(out, "bytes truncated)") {
			t.Errorf("expected truncation marker in output, got %q", out)
		}
	})

	t.Run("truncation preserves valid utf-8", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		// Multibyte runes positioned so a naive byte cut would split one
		fragment := strings.Repeat("章", MaxAttrValueLen)
		logger.Debug("chapter extracted", "content", fragment)

		out := buf.String()
		if !strings.Contains(out, "truncated") {
			t.Fatalf("expected truncated output, got %q", out)
		}
		if strings.ContainsRune(out, '�') {
			t.Error("truncated output contains invalid utf-8")
		}
	})

	t.Run("non-string attributes are untouched", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		logger.Info("collected", "chapters", 42)

		if !strings.Contains(buf.String(), "chapters=42") {
			t.Errorf("expected numeric attribute in output, got %q", buf.String())
		}
	})

	t.Run("group attributes are truncated recursively", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		long := strings.Repeat("b", 2048)
		logger.Info("run", slog.Group("page", slog.String("content", long)))

		out := buf.String()
		if strings.Contains(out, long) {
			t.Error("expected grouped long value to be truncated")
		}
	})
}

// TestNewLoggerLevels tests the verbose switch.
func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)
		logger.Debug("visible")

		if !strings.Contains(buf.String(), "visible") {
			t.Error("expected debug output in verbose mode")
		}
	})

	t.Run("quiet suppresses info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)
		logger.Info("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected no output below warn level, got %q", buf.String())
		}
	})
}
