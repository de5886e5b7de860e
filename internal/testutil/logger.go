// Package testutil provides helpers shared by glue's tests.
package testutil

import (
	"log/slog"
	"os"
	"testing"
)

// LevelEnv overrides the test log level ("debug", "info", "warn", "error").
const LevelEnv = "GLUE_TEST_LOG_LEVEL"

// NewTestLogger returns a logger that writes through tb.Log, so statements and unit of
// work events show up next to the failing test. attrs are attached to every record,
// e.g. "dialect", "sqlite". Records carry no time so output stays diffable.
func NewTestLogger(tb testing.TB, attrs ...any) *slog.Logger {
	tb.Helper()
	level := slog.LevelDebug
	if v := os.Getenv(LevelEnv); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			tb.Fatalf("%s=%q: %v", LevelEnv, v, err)
		}
	}
	h := slog.NewTextHandler(tbWriter{tb}, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(h).With(attrs...)
}

type tbWriter struct {
	tb testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	// slog terminates each record with a newline; t.Log adds its own.
	if n := len(p); n > 0 && p[n-1] == '\n' {
		w.tb.Log(string(p[:n-1]))
	} else {
		w.tb.Log(string(p))
	}
	return len(p), nil
}
