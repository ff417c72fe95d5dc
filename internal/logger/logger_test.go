package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetLevelGetLevelRoundTrip(t *testing.T) {
	defer SetLevel("info")
	SetLevel("warn")
	if got := GetLevel(); got != "warn" {
		t.Errorf("GetLevel() = %q, want warn", got)
	}
}

func TestCustomHandlerFiltersBelowGlobalLevel(t *testing.T) {
	defer SetLevel("info")
	SetLevel("warn")

	var buf bytes.Buffer
	h := &customHandler{outs: []io.Writer{&buf}}
	l := slog.New(h)
	l.Info("should be filtered")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("should appear", "key", "value")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message in output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "key=value") {
		t.Fatalf("expected attrs in output, got %q", buf.String())
	}
}
