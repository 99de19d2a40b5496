// Package api implements the HTTP surfaces from spec §6: the compaction
// service (POST/GET /, /transactions, /reconcile, /cleanup) and, for
// completeness, the ingestion gateway (PUT /, POST /batch).
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/lakeside-io/lakeside/pkg/compactor"
	"github.com/lakeside-io/lakeside/pkg/gateway"
	"github.com/lakeside-io/lakeside/pkg/log"
	"github.com/lakeside-io/lakeside/pkg/metrics"
)

// DefaultIngestRateLimit is the reference rate the gateway's write
// routes are limited to; it exists to shed load rather than to enforce
// a business quota.
const DefaultIngestRateLimit = 200 // requests/second

// Server bundles the compaction and gateway HTTP surfaces behind a
// single chi.Router.
type Server struct {
	router *chi.Mux
}

// NewServer wires the full HTTP surface. gw may be nil, in which case
// the gateway routes (PUT /, POST /batch) are omitted — a deployment may
// run the compaction service and the gateway as separate processes.
func NewServer(c *compactor.Compactor, gw *gateway.Gateway) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler)
	r.Handle("/metrics", metrics.Handler())

	compactionHandlers{c: c}.mount(r)

	if gw != nil {
		limiter := rate.NewLimiter(rate.Limit(DefaultIngestRateLimit), DefaultIngestRateLimit)
		gatewayHandlers{gw: gw, limiter: limiter}.mount(r)
	}

	return &Server{router: r}
}

// ServeHTTP lets Server satisfy http.Handler directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts an HTTP server bound to addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithComponent("api").Info().Str("addr", addr).Msg("listening")
	return srv.ListenAndServe()
}

func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
		metrics.APIRequestsTotal.WithLabelValues(route, http.StatusText(ww.Status())).Inc()
	})
}
