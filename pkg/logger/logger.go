// Package logger builds the *slog.Logger instances used across dechat:
// colorized output for interactive commands and JSON for the server.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	format Format
	out    io.Writer
}

// New returns a logger configured by opts. Without options it writes
// Info-level text records to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, out: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}

	return slog.New(c.handler())
}

func (c *config) handler() slog.Handler {
	switch c.format {
	case FormatPretty:
		return charmlog.NewWithOptions(c.out, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
		})
	case FormatJSON:
		return slog.NewJSONHandler(c.out, &slog.HandlerOptions{Level: c.level})
	default:
		return slog.NewTextHandler(c.out, &slog.HandlerOptions{Level: c.level})
	}
}

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
