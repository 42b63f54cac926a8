package server

import (
	"bufio"
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// The page loads only its own script and stylesheet; connect-src
			// 'self' covers the same-origin websocket.
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self'; "+
					"style-src 'self'; "+
					"img-src 'self' data:; "+
					"connect-src 'self'; "+
					"form-action 'self'; "+
					"frame-ancestors 'none'")

			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the status code and size for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogMiddleware logs one line per request.
func RequestLogMiddleware(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   status,
				"bytes":    rec.size,
				"duration": time.Since(start).Round(time.Microsecond),
				"remote":   getClientIP(r),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request")
			} else {
				entry.Debug("request")
			}
		})
	}
}

const (
	// evictionLogInterval is the minimum time between eviction log messages.
	evictionLogInterval = 30 * time.Second
	limiterSweepEvery   = 5 * time.Minute
	limiterIdleAfter    = 10 * time.Minute
)

// ipLimiter tracks a per-IP token bucket and its position in the LRU list.
type ipLimiter struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP, at most maxIPs of them.
// The least recently seen IP is evicted when a new one arrives at capacity.
type rateLimiter struct {
	rps    rate.Limit
	burst  int
	maxIPs int
	log    *logrus.Entry

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recent

	lastEvictLog time.Time
	evictCount   int
}

func newRateLimiter(rps float64, burst, maxIPs int, log *logrus.Entry) *rateLimiter {
	if maxIPs <= 0 {
		maxIPs = 10000
	}
	return &rateLimiter{
		rps:    rate.Limit(rps),
		burst:  burst,
		maxIPs: maxIPs,
		log:    log,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// allow takes a token for ip.
func (l *rateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.items[ip]; ok {
		l.order.MoveToFront(elem)
		lim := elem.Value.(*ipLimiter)
		lim.lastSeen = now
		return lim.limiter.AllowN(now, 1)
	}

	if l.order.Len() >= l.maxIPs {
		l.evictOldestLocked(now)
	}
	lim := &ipLimiter{
		ip:       ip,
		limiter:  rate.NewLimiter(l.rps, l.burst),
		lastSeen: now,
	}
	l.items[ip] = l.order.PushFront(lim)
	return lim.limiter.AllowN(now, 1)
}

func (l *rateLimiter) evictOldestLocked(now time.Time) {
	back := l.order.Back()
	if back == nil {
		return
	}
	evicted := back.Value.(*ipLimiter)
	l.order.Remove(back)
	delete(l.items, evicted.ip)
	l.evictCount++
	if now.Sub(l.lastEvictLog) >= evictionLogInterval {
		l.log.WithFields(logrus.Fields{
			"evicted":  l.evictCount,
			"capacity": l.maxIPs,
		}).Warn("rate limiter at capacity, evicted least recent IPs")
		l.lastEvictLog = now
		l.evictCount = 0
	}
}

// sweep drops limiters idle for longer than idle. LRU order tracks access,
// not lastSeen, so every entry is checked.
func (l *rateLimiter) sweep(now time.Time, idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for e := l.order.Back(); e != nil; {
		prev := e.Prev()
		lim := e.Value.(*ipLimiter)
		if now.Sub(lim.lastSeen) > idle {
			l.order.Remove(e)
			delete(l.items, lim.ip)
			removed++
		}
		e = prev
	}
	return removed
}

func (l *rateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// RateLimitMiddleware limits requests using a token bucket per client IP.
// rps is the refill rate, burst the bucket size and maxIPs the number of
// IPs tracked before LRU eviction.
//
// The sweeper goroutine runs until ctx is cancelled; the returned channel
// is closed when it has exited.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, maxIPs int, log *logrus.Entry) (func(http.Handler) http.Handler, <-chan struct{}) {
	if log == nil {
		log = logrus.WithField("component", "ratelimit")
	}
	limiter := newRateLimiter(rps, burst, maxIPs, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if n := limiter.sweep(now, limiterIdleAfter); n > 0 {
					log.WithField("removed", n).Debug("swept idle rate limiters")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(getClientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	return middleware, done
}

// getClientIP extracts the client IP from the request.
// It only trusts X-Forwarded-For / X-Real-IP when the immediate peer is a
// loopback or private address (i.e., behind a reverse proxy).
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peerIP := net.ParseIP(host)
	trustedProxy := peerIP != nil && (peerIP.IsLoopback() || peerIP.IsPrivate())

	if trustedProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if peerIP != nil {
		return peerIP.String()
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
