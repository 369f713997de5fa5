package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{" info ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewJSONLoggerRespectsLevel(t *testing.T) {
	log := NewJSONLogger("api", "error")
	if log.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be suppressed at error level")
	}
	if !log.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error level should be enabled")
	}
}
