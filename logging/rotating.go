package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const filePrefix = "interactions-"

var numberedFile = regexp.MustCompile(`^interactions-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger is an io.Writer over weekly log files, split further by size.
// Files are named interactions-YYYY-Www.log, then interactions-YYYY-Www_NN.log
// once a week's file reaches the size limit.
type RotatingLogger struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	file        *os.File
	week        string
	size        atomic.Int64
	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger with the default 100MB size limit
func NewRotatingLogger(dir string, retentionWeeks int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(dir, retentionWeeks, 100*1024*1024)
}

// NewRotatingLoggerWithSizeLimit creates a rotating logger; maxFileSize 0 disables size rollover
func NewRotatingLoggerWithSizeLimit(dir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// weekKey returns the ISO week as YYYY-Www
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// open switches to the right file for week (caller holds mu)
func (rl *RotatingLogger) open(week string, full bool) error {
	if rl.file != nil {
		_ = rl.file.Close()
		rl.file = nil
	}

	name := rl.pickFile(week, full)
	path := filepath.Join(rl.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.file = f
	rl.week = week
	rl.size.Store(0)
	if info, err := f.Stat(); err == nil {
		rl.size.Store(info.Size())
	}
	return nil
}

// pickFile returns the base file for the week while it has room, otherwise
// the highest numbered file with room, otherwise the next number
func (rl *RotatingLogger) pickFile(week string, full bool) string {
	base := filePrefix + week + ".log"
	if !full {
		info, err := os.Stat(filepath.Join(rl.dir, base))
		if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return base
		}
	}

	matches, _ := filepath.Glob(filepath.Join(rl.dir, filePrefix+week+"_??.log"))
	highest := 0
	var highestSize int64
	for _, m := range matches {
		sub := numberedFile.FindStringSubmatch(filepath.Base(m))
		if len(sub) < 2 {
			continue
		}
		n, _ := strconv.Atoi(sub[1])
		if n > highest {
			highest = n
			highestSize = 0
			if info, err := os.Stat(m); err == nil {
				highestSize = info.Size()
			}
		}
	}

	if highest > 0 && highestSize < rl.maxFileSize {
		return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest)
	}
	return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest+1)
}

// Write implements io.Writer
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := weekKey(time.Now())
	full := rl.maxFileSize > 0 && rl.week == week && rl.size.Load()+int64(len(p)) > rl.maxFileSize
	if rl.file == nil || rl.week != week || full {
		if err := rl.open(week, full); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files whose last write is older than the retention window
func (rl *RotatingLogger) cleanupOldLogs() (int, error) {
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rl.dir, e.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}

// startCleanup runs cleanupOldLogs once a day until Close
func (rl *RotatingLogger) startCleanup() {
	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-rl.ctx.Done():
				return
			case <-ticker.C:
				// fmt, not slog: the slog handler writes back into this logger
				if n, err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				} else if n > 0 {
					fmt.Printf("Cleaned up %d old log files\n", n)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.cancel()

	select {
	case <-rl.cleanupDone:
	case <-time.After(100 * time.Millisecond):
		// cleanup was never started
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}
