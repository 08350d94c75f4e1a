/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, attached to every log line
  2. Logger:     zerolog request line plus Prometheus request metrics
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a browser frontend
  5. Owner:      X-Owner-ID header -> account (all /api routes)

ROUTE GROUPS:
  /api/entities/*     Entity lifecycle, toggles, per-entity analytics
  /api/subitems/*     Sub-item edit, delete, toggle
  /api/analytics/*    Owner-wide histograms and summaries
  /api/insights       Account insights
  /api/export/*       CSV download
  /api/import/*       CSV upload
  /metrics            Prometheus scrape endpoint
  /healthz            Liveness

SECURITY NOTE:
  Authentication happens upstream. The owner header is trusted as-is.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging, metrics, owner resolution
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
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OwnerHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(requireOwner(h.Accounts))

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Post("/", h.CreateEntity)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEntity)
				r.Patch("/", h.UpdateEntity)
				r.Put("/", h.UpdateEntity)
				r.Delete("/", h.DeleteEntity)

				r.Post("/toggle", h.ToggleEntity)
				r.Put("/completions/{date}", h.MarkCompleted)
				r.Delete("/completions/{date}", h.UndoCompleted)

				r.Get("/stats", h.GetEntityStats)
				r.Get("/report", h.GetEntityReport)
				r.Get("/streak", h.GetCurrentStreak)
				r.Get("/weekdays", h.GetWeekdayFrequency)
				r.Get("/planned-actual", h.GetPlannedVsActual)
				r.Get("/monthly-dates", h.GetTrailingMonthDates)

				r.Get("/subitems", h.ListSubItems)
				r.Post("/subitems", h.CreateSubItem)
				r.Get("/subitems/status", h.GetSubItemStatus)
			})
		})

		r.Route("/subitems/{id}", func(r chi.Router) {
			r.Patch("/", h.UpdateSubItem)
			r.Put("/", h.UpdateSubItem)
			r.Delete("/", h.DeleteSubItem)
			r.Post("/toggle", h.ToggleSubItem)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/monthly", h.GetMonthlyHistogram)
			r.Get("/trailing", h.GetTrailingMonths)
			r.Get("/summary", h.GetCompletionSummary)
			r.Get("/dates", h.GetCompletedDates)
		})

		r.Get("/insights", h.GetInsights)

		r.Route("/export", func(r chi.Router) {
			r.Get("/entities.csv", h.ExportEntities)
			r.Get("/completions.csv", h.ExportCompletions)
		})
		r.Route("/import", func(r chi.Router) {
			r.Post("/", h.Import)
			r.Post("/completions", h.ImportCompletions)
		})
	})

	return r
}
