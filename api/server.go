/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires URLs to handlers with chi. Middleware: request logging, panic
  recovery, request IDs, CORS for the school-office frontend.

SECURITY NOTE:
  Authentication and session management are the calling collaborator's
  concern; this service trusts the X-Actor-* headers it is handed.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/acta-engine/acta"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-Id", "X-Actor-Name"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/actas", func(r chi.Router) {
			r.Get("/", h.ListActas)
			r.Post("/", h.CreateActa)

			// Bulk operations before the {ref} wildcard.
			r.Route("/bulk", func(r chi.Router) {
				r.Post("/validate", h.BulkValidate)
				r.Post("/lock", h.BulkLock)
				r.Post("/publish", h.BulkPublish)
			})

			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", h.GetActa)
				r.Put("/", h.SaveActa)
				r.Post("/validate", h.transitionHandler(
					func(r *http.Request, actor acta.Actor, ref acta.Ref) (*acta.Acta, error) {
						return h.Service.Validate(r.Context(), actor, ref)
					}))
				r.Post("/lock", h.transitionHandler(
					func(r *http.Request, actor acta.Actor, ref acta.Ref) (*acta.Acta, error) {
						return h.Service.Lock(r.Context(), actor, ref)
					}))
				r.Post("/unlock", h.transitionHandler(
					func(r *http.Request, actor acta.Actor, ref acta.Ref) (*acta.Acta, error) {
						return h.Service.Unlock(r.Context(), actor, ref)
					}))
				r.Post("/publish", h.transitionHandler(
					func(r *http.Request, actor acta.Actor, ref acta.Ref) (*acta.Acta, error) {
						return h.Service.Publish(r.Context(), actor, ref)
					}))
				r.Post("/unpublish", h.transitionHandler(
					func(r *http.Request, actor acta.Actor, ref acta.Ref) (*acta.Acta, error) {
						return h.Service.Unpublish(r.Context(), actor, ref)
					}))
			})
		})

		r.Route("/exports", func(r chi.Router) {
			r.Get("/consolidated", h.ExportConsolidated)
			r.Get("/students", h.ExportPerStudent)
		})

		r.Get("/audit", h.AuditEvents)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
