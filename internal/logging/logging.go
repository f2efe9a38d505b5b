// Package logging builds the slog loggers used across gqlbridge.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Config holds logger configuration.
//
// Level is one of DEBUG, INFO, WARN or ERROR. Format is text or json.
type Config struct {
	Level     string `mapstructure:"level" json:"level"`
	Format    string `mapstructure:"format" json:"format"`
	AddSource bool   `mapstructure:"add_source" json:"add_source"`
}

// ParseLevel maps a level name to a slog level. Unknown names are INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New creates a logger writing to w.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
