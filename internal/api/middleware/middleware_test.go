package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }
	h := rl.Limit(ok)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d: want=200 got=%d", i, code)
		}
	}
	if code := do("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("burst exhausted: want=429 got=%d", code)
	}
	if code := do("10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("other client: want=200 got=%d", code)
	}

	clock = clock.Add(time.Second)
	if code := do("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("after refill: want=200 got=%d", code)
	}

	clock = clock.Add(visitorTTL + time.Second)
	rl.evict()
	if n := len(rl.visitors); n != 0 {
		t.Fatalf("visitors after evict: want=0 got=%d", n)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/generate-script", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: want=204 got=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin: want=%q got=%q", "http://localhost:3000", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin: want none got=%q", got)
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status: want=%d got=%d", http.StatusTeapot, rec.Code)
	}
}
