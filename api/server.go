/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/runs             Batch processing
  /api/incentives       Ledger rows
  /api/reports/*        Aggregates and statements
  /api/pool             Helper pool lookup
  /api/staff/*          Roster management
  /api/adjustments      Extra / cut incentive
  /api/payments         Payment records
  /api/scheme           Active scheme
  /metrics              Prometheus exposition
  /health               Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the outer surface of the router.
type RouterOptions struct {
	CORSOrigins []string
	// Gatherer backs /metrics; nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", h.CreateRun)
		r.Get("/incentives", h.ListIncentives)
		r.Get("/pool", h.GetPool)
		r.Get("/scheme", h.GetScheme)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/totals", h.GetTotals)
			r.Get("/staff", h.GetStaffTotals)
			r.Get("/staff/{name}/summary", h.GetStaffSummary)
			r.Get("/top", h.GetTop)
			r.Get("/daily", h.GetDaily)
			r.Get("/monthly", h.GetMonthly)
			r.Get("/latest", h.GetLatestDate)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateStaff)
			r.Put("/{name}/role", h.SetStaffRole)
		})

		r.Post("/adjustments", h.CreateAdjustment)

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
		})
	})

	return r
}
