package localhttp

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewRouter builds the agent API. It listens on loopback and relies on CORS
// to keep other origins out.
func NewRouter(logger *slog.Logger, allowedOrigins []string, handler Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.Status)
		r.Post("/sync", handler.Sync)
		r.Post("/actions", handler.Enqueue)
		r.Get("/events", handler.Events)

		r.Route("/permissions/{resourceType}/{resourceID}", func(r chi.Router) {
			r.Get("/", handler.GetPermissions)
			r.Get("/{action}", handler.Check)
		})
		r.Get("/boards/{boardID}/columns/visible", handler.VisibleColumns)
		r.Get("/columns/{columnID}/can-view", handler.CanViewColumn)

		r.Route("/conflicts", func(r chi.Router) {
			r.Get("/", handler.ListConflicts)
			r.Post("/{id}/resolve", handler.ResolveConflict)
			r.Post("/{id}/cancel", handler.CancelConflict)
		})
	})
	return r
}
