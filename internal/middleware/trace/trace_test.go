package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf, Component: log.ComponentApp})
	m := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.7" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rechnungen", nil))

	require.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))

	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, "request_id="+seen)
	assert.Contains(t, out, "status_code=418")
	assert.Contains(t, out, "client_ip=203.0.113.7")
	assert.Equal(t, Stats{Total: 1, InFlight: 0}, m.Stats())
}

func TestMiddleware_KeepsValidInboundID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-42", rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(HeaderRequestID))
}

func TestRequestID_EmptyWithoutMiddleware(t *testing.T) {
	assert.Empty(t, RequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
