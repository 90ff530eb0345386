package httpx

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryRateLimiterCountsWithinWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		decision := rl.Allow("route|ip:1.2.3.4", 3, time.Minute)
		if !decision.allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if decision.count != i {
			t.Fatalf("expected count %d, got %d", i, decision.count)
		}
	}

	decision := rl.Allow("route|ip:1.2.3.4", 3, time.Minute)
	if decision.allowed {
		t.Fatal("fourth request should be denied")
	}
	if decision.count != 4 {
		t.Fatalf("expected count 4, got %d", decision.count)
	}
}

func TestMemoryRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	if d := rl.Allow("route|ip:1.2.3.4", 1, time.Minute); !d.allowed {
		t.Fatal("first key should be allowed")
	}
	if d := rl.Allow("route|ip:1.2.3.4", 1, time.Minute); d.allowed {
		t.Fatal("first key should be exhausted")
	}
	if d := rl.Allow("route|ip:5.6.7.8", 1, time.Minute); !d.allowed {
		t.Fatal("second key should have its own counter")
	}
	if d := rl.Allow("other|ip:1.2.3.4", 1, time.Minute); !d.allowed {
		t.Fatal("same client on another route should have its own counter")
	}
}

func TestMemoryRateLimiterWindowResets(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	window := 20 * time.Millisecond
	if d := rl.Allow("k", 1, window); !d.allowed {
		t.Fatal("first request should pass")
	}
	if d := rl.Allow("k", 1, window); d.allowed {
		t.Fatal("second request should be denied")
	}

	time.Sleep(window + 10*time.Millisecond)

	decision := rl.Allow("k", 1, window)
	if !decision.allowed {
		t.Fatal("request in the next window should pass")
	}
	if decision.count != 1 {
		t.Fatalf("counter should restart at 1, got %d", decision.count)
	}
}

func TestMemoryRateLimiterZeroLimitDisables(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 0; i < 50; i++ {
		if d := rl.Allow("k", 0, time.Minute); !d.allowed {
			t.Fatal("zero limit should never deny")
		}
	}
}

func TestMemoryRateLimiterCloseIdempotent(t *testing.T) {
	rl := NewMemoryRateLimiter()
	rl.Close()
	rl.Close()
}

func TestRetrySecondsNeverBelowOne(t *testing.T) {
	if got := retrySeconds(time.Now().Add(-time.Second)); got != 1 {
		t.Fatalf("past window should report 1, got %d", got)
	}
	if got := retrySeconds(time.Now().Add(30 * time.Second)); got < 28 || got > 30 {
		t.Fatalf("expected roughly 30 seconds, got %d", got)
	}
}

func TestKeyKind(t *testing.T) {
	cases := map[string]string{
		"/upload|user:abc":   "user",
		"/upload|ip:1.2.3.4": "ip",
		"global|ip:::1":      "ip",
		"garbage":            "unknown",
	}
	for key, want := range cases {
		if got := keyKind(key); got != want {
			t.Fatalf("keyKind(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestRateLimitKeyIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.9:51234"
	if got := rateLimitKeyIP(req); got != "ip:10.0.0.9" {
		t.Fatalf("expected ip:10.0.0.9, got %q", got)
	}

	req.RemoteAddr = ""
	if got := rateLimitKeyIP(req); got != "ip:unknown" {
		t.Fatalf("expected ip:unknown, got %q", got)
	}
}
