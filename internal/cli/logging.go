package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/scriptengine/internal/config"
)

// newLogger builds the diagnostic logger. It never writes to stdout, which
// carries protocol responses.
func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
