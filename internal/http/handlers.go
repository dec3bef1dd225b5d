package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"rechnungen/internal/core"
	"rechnungen/internal/loader"
	"rechnungen/internal/log"
)

const recentInvoices = 5

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the records service answered a list call.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]any{"templates": "ok"}

	snap := s.loader.Snapshot()
	if snap.State == loader.StateIdle || snap.State == loader.StateFailed {
		if _, err := s.loader.Load(ctx); err != nil && !errors.Is(err, loader.ErrSuperseded) {
			checks["records"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["records"] = "ok"
		}
	} else {
		checks["records"] = snap.State.String()
	}

	limiter := s.limiter.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": limiter.ClientCount,
		"rejected":       limiter.Rejected,
	}
	checks["requests"] = s.tracer.Stats()
	checks["suspicious_requests"] = s.detector.GetMetrics().SuspiciousRequests

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// loadCollection loads the full collection for a page. When the load fails
// the last good collection is returned together with a message for the page.
func (s *Server) loadCollection(ctx context.Context) ([]core.Record, string, time.Time) {
	list, err := s.loader.Load(ctx)
	snap := s.loader.Snapshot()
	if err == nil {
		return list, "", snap.LoadedAt
	}
	if errors.Is(err, loader.ErrSuperseded) {
		return snap.Records, "", snap.LoadedAt
	}
	s.logger.WarnContext(ctx, "Showing last loaded invoices after failed load",
		log.FieldOperation, log.OpLoad,
		log.FieldRecordCount, len(snap.Records),
		log.FieldError, err)
	return snap.Records, describeError(err), snap.LoadedAt
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	list, loadErr, loadedAt := s.loadCollection(r.Context())
	v := newDashboardView(list, recentInvoices)
	v.LoadError = loadErr
	v.LoadedAt = loadedAt
	s.render(w, r, http.StatusOK, "dashboard.html", v)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, loadErr, loadedAt := s.loadCollection(r.Context())
	v := newTableView(list)
	v.LoadError = loadErr
	v.LoadedAt = loadedAt
	s.render(w, r, http.StatusOK, "rechnungen.html", v)
}
