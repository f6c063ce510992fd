// Package logging sets up slog for the service: console and rotating file
// output, package-level helpers, and the HTTP request logging middleware.
package logging

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// quietPaths are polled by probes and scrapers and would drown the request log
var quietPaths = map[string]struct{}{
	"/health":    {},
	"/v1/health": {},
	"/metrics":   {},
}

// recorders are reused between requests; one is allocated per request otherwise
var recorders = sync.Pool{
	New: func() any { return new(statusRecorder) },
}

// statusRecorder captures what the handler sent back
type statusRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (rec *statusRecorder) reset(w http.ResponseWriter) {
	*rec = statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.wroteHeader {
		return
	}
	rec.wroteHeader = true
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// LoggingMiddleware logs one structured line per request.
// 5xx responses log at error level, 429 at warn, everything else at info.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, quiet := quietPaths[r.URL.Path]; quiet {
				next.ServeHTTP(w, r)
				return
			}

			rec := recorders.Get().(*statusRecorder)
			rec.reset(w)
			defer recorders.Put(rec)

			start := time.Now()
			next.ServeHTTP(rec, r)

			logger.LogAttrs(r.Context(), levelFor(rec.status), "HTTP request", requestAttrs(r, rec, time.Since(start))...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func requestAttrs(r *http.Request, rec *statusRecorder, elapsed time.Duration) []slog.Attr {
	requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}

	attrs := make([]slog.Attr, 0, 11)
	attrs = append(attrs,
		slog.String("request_id", requestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		attrs = append(attrs, slog.String("route", rctx.RoutePattern()))
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, slog.String("query", r.URL.RawQuery))
	}

	return append(attrs,
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
		slog.Int("status_code", rec.status),
		slog.Int("bytes_written", rec.size),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
}
