package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger tagged with the service name. dev
// environments also get debug records, which include the planner's
// per-day skip reasons.
func NewLogger(service, env string) *slog.Logger {
	return newLogger(os.Stdout, service, env)
}

func newLogger(w io.Writer, service, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("service", service)
}
