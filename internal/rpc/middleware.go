package rpc

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/web"
)

var (
	requestCount atomic.Int64
	errorCount   atomic.Int64
)

// Logging records one line per request with status and duration. The
// status recorder keeps Hijack working so /ws upgrades pass through.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &web.StatusWriter{ResponseWriter: w, Code: http.StatusOK}

		next.ServeHTTP(sw, r)

		requestCount.Add(1)
		if sw.Code >= 500 {
			errorCount.Add(1)
		}
		slog.Info("request",
			"requestId", r.Header.Get("X-Request-Id"),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Code,
			"ms", time.Since(start).Milliseconds(),
		)
	})
}

// RequestID tags each request with a short random id, kept if the
// client already sent one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			var buf [8]byte
			if _, err := rand.Read(buf[:]); err == nil {
				id = hex.EncodeToString(buf[:])
			}
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// RequestCounters reports totals since startup.
func RequestCounters() (requests, errors int64) {
	return requestCount.Load(), errorCount.Load()
}
