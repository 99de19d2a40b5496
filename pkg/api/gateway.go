package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/lakeside-io/lakeside/pkg/gateway"
	"github.com/lakeside-io/lakeside/pkg/types"
)

// gatewayHandlers implements the ingestion gateway HTTP surface (spec
// §6, "for completeness"): PUT / for a single record, POST /batch for an
// array. Writes are rate-limited since, unlike the compaction routes,
// they are expected to receive sustained external traffic.
type gatewayHandlers struct {
	gw      *gateway.Gateway
	limiter *rate.Limiter
}

func (h gatewayHandlers) mount(r chi.Router) {
	r.With(h.rateLimit).Put("/", h.put)
	r.With(h.rateLimit).Post("/batch", h.putBatch)
}

func (h gatewayHandlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, messageResponse{Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type putResponse struct {
	Key string `json:"key"`
}

func (h gatewayHandlers) put(w http.ResponseWriter, r *http.Request) {
	var record types.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid JSON body"})
		return
	}

	key, err := h.gw.Put(r.Context(), record)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, putResponse{Key: key})
}

func (h gatewayHandlers) putBatch(w http.ResponseWriter, r *http.Request) {
	var records []types.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid JSON body"})
		return
	}

	key, err := h.gw.PutBatch(r.Context(), records)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, putResponse{Key: key})
}

func writeGatewayError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
}
