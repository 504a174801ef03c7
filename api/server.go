/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the agency frontend

ROUTE GROUPS:
  /api/clients/*        Per-client credits, statement, balance
  /api/credits/*        Credit lifecycle and allocations
  /api/allocations/*    Allocation reversal
  /api/payment-status   Stateless payment-status derivation
  /api/admin/*          Ledger audit
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. Tenancy comes from the X-Org-ID
  header; the gateway in front of this service is expected to set it.

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
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Org-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/{id}/credits", h.ListCredits)
			r.Post("/{id}/credits", h.CreateCredit)
			r.Get("/{id}/statement", h.GetStatement)
			r.Get("/{id}/balance", h.GetBalance)
		})

		// Credit routes
		r.Route("/credits", func(r chi.Router) {
			r.Get("/{id}", h.GetCredit)
			r.Delete("/{id}", h.DeleteCredit)
			r.Get("/{id}/allocations", h.ListAllocations)
			r.Post("/{id}/allocations", h.CreateAllocation)
			r.Post("/{id}/refund", h.RefundCredit)
		})

		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Delete("/{id}", h.DeleteAllocation)
		})

		// Stateless payment-status derivation
		r.Post("/payment-status", h.ResolvePaymentStatus)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/ledger/verify", h.VerifyLedger)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
