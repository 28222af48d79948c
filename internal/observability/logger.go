package observability

import (
	"io"
	"log/slog"
	"os"
)

// keys whose values must never reach a log sink
var secretKeys = map[string]bool{
	"pin":           true,
	"otp":           true,
	"code":          true,
	"token":         true,
	"tempToken":     true,
	"authorization": true,
}

// NewLogger returns a JSON logger that stamps trace and user ids on records
// written inside a request and redacts credential-looking attributes.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})

	return slog.New(NewContextHandler(handler)).With("service", "casehub", "env", env)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[a.Key] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
