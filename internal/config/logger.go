package config

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger on stdout at the given level, falling back
// to info for unknown levels, and installs it as the slog default.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
