package gateway

import (
	"context"
	"crypto/subtle"
	"net"
	"strings"
	"sync"
	"time"
)

// HeaderAPIKey carries the shared API key on HTTP requests.
const HeaderAPIKey = "X-API-Key"

// AuthResult is the outcome of an API key check.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Authorize checks a presented key against the configured one. An empty
// configured key leaves the API open.
func Authorize(expected, presented string) AuthResult {
	if expected == "" {
		return AuthResult{OK: true}
	}
	if presented == "" {
		return AuthResult{OK: false, Reason: "api key required"}
	}
	if !safeEqual(presented, expected) {
		return AuthResult{OK: false, Reason: "api key mismatch"}
	}
	return AuthResult{OK: true}
}

// presentedKey reads the key from X-API-Key, falling back to a Bearer
// Authorization header.
func presentedKey(header func(string) string) string {
	if k := header(HeaderAPIKey); k != "" {
		return k
	}
	if v, ok := strings.CutPrefix(header("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// safeEqual performs a constant-time string comparison. It avoids an early
// return on length mismatch so the secret length does not leak via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter tracks failed auth attempts per client IP.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// run prunes stale entries every minute until ctx is done.
func (l *authRateLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *authRateLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-authRateWindow)
	for ip, times := range l.failures {
		if kept := recentSince(times, cutoff); len(kept) == 0 {
			delete(l.failures, ip)
		} else {
			l.failures[ip] = kept
		}
	}
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := hostOf(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := recentSince(l.failures[host], l.now().Add(-authRateWindow))
	if len(kept) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = kept
	return len(kept) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldest time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldest)) {
				oldestIP, oldest = ip, times[0]
			}
		}
		delete(l.failures, oldestIP)
	}
	l.failures[host] = append(l.failures[host], l.now())
}

func recentSince(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
