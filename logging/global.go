package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giygas/ems-interactions-api/config"
)

// timeNow is swapped in tests that need a fixed week
var timeNow = time.Now

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.Mutex
)

// InitLogger initializes the global logger and makes it the slog default.
// On a file error the console logger is still installed and the error returned.
func InitLogger(opts Options) error {
	logger, rl, err := NewLogger(opts)

	serviceMu.Lock()
	old := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, rotating: rl}
	serviceMu.Unlock()

	if old != nil && old.rotating != nil {
		_ = old.rotating.Close()
	}
	slog.SetDefault(logger)
	return err
}

// Close flushes and closes the log files
func Close() {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService != nil && DefaultLoggingService.rotating != nil {
		_ = DefaultLoggingService.rotating.Close()
		DefaultLoggingService.rotating = nil
	}
}

// ResetForTest installs a fresh logger in dir and closes it when the test ends
func ResetForTest(t testing.TB, dir string, env config.Environment, level string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	if err := InitLogger(Options{
		Dir:            dir,
		Env:            env,
		Level:          level,
		RetentionWeeks: retentionWeeks,
		MaxFileSize:    maxFileSize,
	}); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	t.Cleanup(Close)
}

// parseLogLevel maps LOG_LEVEL to a slog level, defaulting to info
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level: tests stay quiet unless verbose,
// an explicit LOG_LEVEL wins elsewhere, otherwise dev logs info and deployed
// environments log warnings.
func GetConsoleLogLevel(env config.Environment, levelStr string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if levelStr != "" {
		return parseLogLevel(levelStr)
	}
	if env == config.EnvDevelopment {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// GetFileLogLevel returns the file level; files always keep debug records
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func current() *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if l := current(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := current(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if l := current(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := current(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback.Debug(msg, args...)
}
