package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/giygas/ems-interactions-api/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetConsoleLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		env         config.Environment
		logLevelStr string
		verbose     bool
		expected    slog.Level
	}{
		{"dev defaults to info", config.EnvDevelopment, "", false, slog.LevelInfo},
		{"test quiet defaults to error", config.EnvTest, "", false, slog.LevelError},
		{"test verbose defaults to info", config.EnvTest, "", true, slog.LevelInfo},
		{"prod defaults to warn", config.EnvProduction, "", false, slog.LevelWarn},
		{"staging defaults to warn", config.EnvStaging, "", false, slog.LevelWarn},
		{"prod with debug override", config.EnvProduction, "debug", false, slog.LevelDebug},
		{"dev with error override", config.EnvDevelopment, "error", false, slog.LevelError},
		{"test ignores override", config.EnvTest, "debug", false, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetConsoleLogLevel(tt.env, tt.logLevelStr, tt.verbose)
			if got != tt.expected {
				t.Errorf("GetConsoleLogLevel(%v, %q, %v) = %v, want %v", tt.env, tt.logLevelStr, tt.verbose, got, tt.expected)
			}
		})
	}
}

func TestGetFileLogLevel(t *testing.T) {
	if got := GetFileLogLevel(); got != slog.LevelDebug {
		t.Errorf("GetFileLogLevel() = %v, want %v", got, slog.LevelDebug)
	}
}

func TestGlobalLoggingServiceWritesFile(t *testing.T) {
	dir := t.TempDir()
	ResetForTest(t, dir, config.EnvTest, "", 2, 100*1024*1024)

	if DefaultLoggingService == nil {
		t.Fatal("DefaultLoggingService was not initialized")
	}

	Debug("debug reaches the file")
	Info("rules loaded", "count", 24)
	Warn("catalog missing drug", "drug", "Sildenafil")
	Error("refresh failed")

	data, err := os.ReadFile(filepath.Join(dir, "interactions-"+weekKey(time.Now())+".log"))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	for _, want := range []string{`"msg":"debug reaches the file"`, `"count":24`, `"drug":"Sildenafil"`, `"level":"ERROR"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %s:\n%s", want, data)
		}
	}
}

func TestInitLoggerBadDirectoryFallsBackToConsole(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := InitLogger(Options{Dir: filepath.Join(file, "logs"), Env: config.EnvTest, RetentionWeeks: 1})
	t.Cleanup(Close)
	if err == nil {
		t.Error("Expected an error for an unusable log directory")
	}
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		t.Error("Expected a console logger to be installed anyway")
	}
}

func TestPackageFunctionsWithoutInit(t *testing.T) {
	serviceMu.Lock()
	saved := DefaultLoggingService
	DefaultLoggingService = nil
	serviceMu.Unlock()
	defer func() {
		serviceMu.Lock()
		DefaultLoggingService = saved
		serviceMu.Unlock()
	}()

	// must not panic
	Info("info")
	Warn("warn")
	Error("error")
	Debug("debug")
}

func TestMultiHandler(t *testing.T) {
	var quiet, loud strings.Builder
	multi := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !multi.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug enabled when any handler accepts it")
	}

	logger := slog.New(multi).With("component", "matcher").WithGroup("pair")
	logger.Info("checked", "a", "Morphine")

	if quiet.Len() != 0 {
		t.Errorf("error-level handler should skip info, got %s", quiet.String())
	}
	if !strings.Contains(loud.String(), "component=matcher") || !strings.Contains(loud.String(), "pair.a=Morphine") {
		t.Errorf("attrs or group missing: %s", loud.String())
	}
}
