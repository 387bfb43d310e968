package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter is a process-local sliding-window rate limiter. State is keyed by
// (bucket, client key) so different endpoints can carry different budgets for
// the same caller. Construct one at startup and pass it to every handler.
//
// Idle keys are never evicted; in a multi-instance deployment each instance
// enforces its own limit.
type Limiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit reports whether a request may proceed. maxRequests <= 0 disables
// limiting for the bucket entirely. The prune/decide/record sequence runs
// under one lock so concurrent callers can never admit more than maxRequests
// entries inside any window.
func (l *Limiter) Admit(bucket, clientKey string, maxRequests int, window time.Duration) bool {
	if maxRequests <= 0 {
		return true
	}

	key := bucket + ":" + clientKey
	now := l.now()
	windowStart := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries[key]
	keep := 0
	for _, t := range entries {
		if !t.Before(windowStart) {
			break
		}
		keep++
	}
	entries = entries[keep:]

	if len(entries) >= maxRequests {
		l.entries[key] = entries
		return false
	}

	l.entries[key] = append(entries, now)
	return true
}

// ClientKey derives a stable identity for the caller: the first entry of the
// X-Forwarded-For chain if present, otherwise the peer address, otherwise
// "unknown".
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
