package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gmellier/fontdrop/internal/apperror"
	"github.com/gmellier/fontdrop/internal/product"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter counts requests per key inside fixed, non-overlapping windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]rateState
	stopCh  chan struct{}
	once    sync.Once
}

type rateState struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateLimiter returns an in-process fixed-window limiter. The
// counter update is atomic per key under one mutex, so concurrent bursts
// never undercount.
func NewMemoryRateLimiter() RateLimiter {
	rl := &memoryRateLimiter{
		entries: make(map[string]rateState),
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || now.After(state.windowEnd) {
		state = rateState{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = state
		return rateDecision{allowed: true, count: state.count, windowEnd: state.windowEnd}
	}
	state.count++
	rl.entries[key] = state
	if state.count > limit {
		return rateDecision{allowed: false, count: state.count, windowEnd: state.windowEnd}
	}
	return rateDecision{allowed: true, count: state.count, windowEnd: state.windowEnd}
}

func (rl *memoryRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if now.After(state.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// RateLimit applies a fixed-window limit to one route. The counter key pairs
// the route with the client identity: the authenticated user when the guard
// chain already ran, the source IP otherwise. Over the limit the request
// fails with the 429 envelope carrying retry_in seconds.
func (rt *Router) RateLimit(route string, max int, window time.Duration, next product.HandlerFunc) product.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		if max <= 0 || rt.limiter == nil {
			return next(w, req)
		}
		key := route + "|" + clientKey(req)
		decision := rt.limiter.Allow(key, max, window)
		applyRateHeaders(w, max, decision)
		if !decision.allowed {
			retryIn := retrySeconds(decision.windowEnd)
			w.Header().Set("Retry-After", strconv.Itoa(retryIn))
			rt.recordRateLimitHit(route, keyKind(key))
			return apperror.TooManyRequests("Too many requests").
				WithDetails(map[string]any{"retry_in": retryIn})
		}
		return next(w, req)
	}
}

// globalLimit is the unauthenticated ceiling protecting every route, keyed
// by source IP only.
func (rt *Router) globalLimit(next product.HandlerFunc) product.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		max := rt.cfg.RateLimitGlobal
		if max <= 0 || rt.limiter == nil {
			return next(w, req)
		}
		decision := rt.limiter.Allow("global|"+rateLimitKeyIP(req), max, time.Minute)
		if !decision.allowed {
			retryIn := retrySeconds(decision.windowEnd)
			w.Header().Set("Retry-After", strconv.Itoa(retryIn))
			rt.recordRateLimitHit("global", "ip")
			return apperror.TooManyRequests("Too many requests").
				WithDetails(map[string]any{"retry_in": retryIn})
		}
		return next(w, req)
	}
}

func applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// retrySeconds reports whole seconds until the window resets, at least 1.
func retrySeconds(windowEnd time.Time) int {
	remaining := int(time.Until(windowEnd).Seconds())
	if remaining < 1 {
		remaining = 1
	}
	return remaining
}

// clientKey prefers the authenticated user as the rate identity so limits
// follow the account across addresses.
func clientKey(req *http.Request) string {
	if claims, ok := ClaimsFromContext(req.Context()); ok && claims.UserID() != "" {
		return "user:" + claims.UserID()
	}
	return rateLimitKeyIP(req)
}

func rateLimitKeyIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

func keyKind(key string) string {
	if idx := strings.LastIndexByte(key, '|'); idx >= 0 {
		key = key[idx+1:]
	}
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return "unknown"
}
