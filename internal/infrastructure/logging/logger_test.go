package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger := New(config.LoggingConfig{Level: "debug", Format: format, Output: "stderr"}, "1.0.0")
		if logger == nil {
			t.Fatalf("New(%s) returned nil", format)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "info"}, "1.0.0")
	childLogger := logger.With("component", "executor")

	if childLogger == nil {
		t.Fatal("expected non-nil child logger")
	}
	if childLogger == logger {
		t.Error("expected child logger to be different from parent")
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	logger.Info("test message", "key", "value")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	want := map[string]string{
		"service": "vimqa",
		"version": "test",
		"msg":     "test message",
		"key":     "value",
	}
	for k, v := range want {
		if logEntry[k] != v {
			t.Errorf("%s = %v, want %q", k, logEntry[k], v)
		}
	}
}

func TestLogger_Trace(t *testing.T) {
	t.Run("emitted at trace level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newWithWriter(config.LoggingConfig{Level: "trace", Format: "json"}, "test", &buf)
		logger.Trace("executing statement", "sql", "SELECT 1;")

		var logEntry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
			t.Fatalf("failed to parse JSON output: %v", err)
		}
		if logEntry["level"] != "TRACE" {
			t.Errorf("level = %v, want TRACE", logEntry["level"])
		}
	})

	t.Run("suppressed at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, "test", &buf)
		logger.Trace("executing statement")
		logger.Debug("visible")

		out := buf.String()
		if strings.Contains(out, "executing statement") {
			t.Error("trace line written at debug level")
		}
		if !strings.Contains(out, "visible") {
			t.Error("debug line missing")
		}
	})
}
