package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/giygas/ems-interactions-api/config"
)

// Options controls where and how verbosely the service logs
type Options struct {
	Dir            string
	Env            config.Environment
	Level          string // LOG_LEVEL override for the console, empty uses the environment default
	RetentionWeeks int
	MaxFileSize    int64
	Verbose        bool // test runs only: show info on the console
}

// NewLogger builds a logger writing text to stdout and JSON to rotating files.
// The returned RotatingLogger must be closed on shutdown.
func NewLogger(opts Options) (*slog.Logger, *RotatingLogger, error) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return slog.New(console), nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	rl := NewRotatingLoggerWithSizeLimit(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	rl.mu.Lock()
	err := rl.open(weekKey(timeNow()), false)
	rl.mu.Unlock()
	if err != nil {
		return slog.New(console), nil, err
	}
	rl.startCleanup()

	file := slog.NewJSONHandler(rl, &slog.HandlerOptions{Level: GetFileLogLevel()})

	return slog.New(&multiHandler{handlers: []slog.Handler{console, file}}), rl, nil
}

// multiHandler fans a record out to every handler that accepts its level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
