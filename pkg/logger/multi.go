package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi returns a logger that writes every record to each of loggers.
// "dechat serve --log-file" tees console output into a JSON file with it.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	t := make(tee, len(loggers))
	for i, l := range loggers {
		t[i] = l.Handler()
	}
	return slog.New(t)
}

// tee fans records out to its handlers. A failing handler does not stop
// the others.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
