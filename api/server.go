/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap access log plus request duration histogram
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/financial/*   Cost dashboard, client costs, summary, profitability
  /api/clients/*     Client portfolio
  /api/team/*        Members, squads, allocations, roster metrics
  /api/demands/*     Kanban demands, SLA board and design approval
  /api/design/*      Design rate cards and payments
  /api/meetings      Meetings (health score observations)
  /api/dashboard/*   Headline counters
  /api/scenarios/*   Demo data
  /metrics           Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger.Sugar()))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/financial", func(r chi.Router) {
			r.Get("/dashboard", h.GetCostDashboard)
			r.Get("/clients/{id}/costs", h.GetClientCosts)
			r.Get("/summary", h.GetSummary)
			r.Put("/summary", h.PutFinancials)
			r.Post("/expenses", h.CreateExpense)
			r.Get("/profitability", h.GetProfitability)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
		})

		r.Route("/team", func(r chi.Router) {
			r.Get("/members", h.ListMembers)
			r.Post("/members", h.CreateMember)
			r.Get("/members/{id}/metrics", h.GetMemberMetrics)
			r.Get("/roster", h.GetRoster)
			r.Get("/squads", h.ListSquads)
			r.Post("/squads", h.CreateSquad)
			r.Get("/allocations", h.ListAllocations)
			r.Post("/allocations", h.CreateAllocation)
			r.Post("/allocations/{id}/end", h.EndAllocation)
		})

		r.Route("/demands", func(r chi.Router) {
			r.Get("/", h.ListDemands)
			r.Post("/", h.CreateDemand)
			r.Get("/board", h.GetBoard)
			r.Post("/{id}/move", h.MoveDemand)
			r.Post("/{id}/approve", h.ApproveDemand)
		})

		r.Route("/design", func(r chi.Router) {
			r.Get("/rates", h.ListRates)
			r.Put("/rates", h.PutRate)
			r.Get("/payments", h.ListPayments)
			r.Get("/payments/summary", h.GetPaymentSummary)
		})

		r.Route("/meetings", func(r chi.Router) {
			r.Get("/", h.ListMeetings)
			r.Post("/", h.CreateMeeting)
		})

		r.Get("/dashboard/stats", h.GetStats)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
