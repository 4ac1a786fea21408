package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CloakLink/CloakLinkSOL/internal/indexer"
	"github.com/CloakLink/CloakLinkSOL/internal/metrics"
)

// NewHealthRouter serves the indexer's read-only health snapshot and the
// prometheus text exposition. Both always answer 200 while the process is up.
func NewHealthRouter(snapshot func() indexer.Snapshot) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s := snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":              "ok",
			"lastPollAt":          s.LastPollAt,
			"lastInvoiceCount":    s.LastInvoiceCount,
			"skippedDueToCircuit": s.SkippedDueToCircuit,
			"rpcStatus":           s.RPCStatus,
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
