package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// fixedWindow counts requests per client IP in fixed windows.
type fixedWindow struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	now     func() time.Time
	buckets map[string]*bucket
	sweepAt time.Time
}

// allow records a hit for key and reports whether it fits in the window,
// returning the wait until the window resets when it does not.
func (f *fixedWindow) allow(key string) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if now.After(f.sweepAt) {
		for k, b := range f.buckets {
			if now.After(b.until) {
				delete(f.buckets, k)
			}
		}
		f.sweepAt = now.Add(f.per)
	}

	b, ok := f.buckets[key]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(f.per)}
		f.buckets[key] = b
	}
	if b.count >= f.limit {
		return false, b.until.Sub(now)
	}
	b.count++
	return true, 0
}

// RateLimit limits each client IP to limit requests per window. A
// non-positive limit disables it.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return rateLimitWithClock(limit, per, time.Now)
}

func rateLimitWithClock(limit int, per time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	window := &fixedWindow{limit: limit, per: per, now: now, buckets: make(map[string]*bucket)}
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := window.allow(clientIPForRateLimit(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
