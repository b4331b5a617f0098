package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/enginekit/internal/core/observability/log"
)

// RequestLogger logs every request with its status and duration.
func RequestLogger(logger log.Log, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []log.Field{
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", rec.status),
			log.Duration("duration", time.Since(start)),
			log.String("remote_addr", r.RemoteAddr),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request handled", fields...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RateLimiter allows each remote host limit requests per window.
type RateLimiter struct {
	logger  log.Log
	limit   int
	window  time.Duration
	clients sync.Map // host -> *clientWindow
}

type clientWindow struct {
	mu    sync.Mutex
	start time.Time
	count int
}

func NewRateLimiter(limit int, window time.Duration, logger log.Log) *RateLimiter {
	return &RateLimiter{logger: logger, limit: limit, window: window}
}

// Allow counts one request from host and reports whether it fits the
// current window.
func (l *RateLimiter) Allow(host string, now time.Time) bool {
	v, _ := l.clients.LoadOrStore(host, &clientWindow{start: now})
	cw := v.(*clientWindow)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if now.Sub(cw.start) >= l.window {
		cw.start = now
		cw.count = 0
	}
	if cw.count >= l.limit {
		return false
	}
	cw.count++
	return true
}

// Middleware rejects requests over the limit with 429. A non-positive
// limit disables it.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.Allow(host, time.Now()) {
			l.logger.Warn("rate limit exceeded",
				log.String("remote_addr", host),
				log.Int("limit", l.limit),
			)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
