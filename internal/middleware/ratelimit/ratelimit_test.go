package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestAllow_WindowBudget(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(Config{RequestsPerMinute: 3}, c.now)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are independent")

	c.t = c.t.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "window restarts after a quiet minute")

	m := rl.GetMetrics()
	assert.Equal(t, int64(1), m.Rejected)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestCleanupStaleEntries(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(Config{RequestsPerMinute: 5}, c.now)

	rl.Allow("a")
	c.t = c.t.Add(9 * time.Minute)
	rl.Allow("b")
	c.t = c.t.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, int64(1), rl.GetMetrics().ClientCount)
}

func TestMiddleware_RejectsWith429(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "192.0.2.1" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rl.Stop()
}
