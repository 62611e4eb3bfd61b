package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/Proton-105/chatshop/internal/health"
)

// Probes serves liveness and readiness. Readiness fails while draining and whenever a dependency
// check fails.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
}

// NewProbes creates probes backed by checker.
func NewProbes(checker *health.Checker) *Probes {
	return &Probes{checker: checker}
}

// Drain makes readiness fail so traffic stops before shutdown.
func (p *Probes) Drain() {
	p.draining.Store(true)
}

// Register mounts /health/live and /health/ready on mux.
func (p *Probes) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
	mux.HandleFunc("/health/ready", p.ready)
}

func (p *Probes) ready(w http.ResponseWriter, r *http.Request) {
	if p.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}

	report := health.Report{Healthy: true}
	if p.checker != nil {
		report = p.checker.Check(r.Context())
	}

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Ready reports whether every dependency check passes.
func (p *Probes) Ready(ctx context.Context) bool {
	return !p.draining.Load() && (p.checker == nil || p.checker.Check(ctx).Healthy)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
