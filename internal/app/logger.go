package app

import (
	"log/slog"
	"os"
	"path/filepath"
)

// NewLogger builds the process logger. Production keeps Info level for the
// log pipeline; everywhere else gets Debug for readable local runs. Every
// record carries the binary name so server and worker lines can be told apart
// in a shared stream.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg != nil && cfg.IsProduction() {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", filepath.Base(os.Args[0])))
}
