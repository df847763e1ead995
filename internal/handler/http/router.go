package http

import (
	"log/slog"

	"github.com/cmlabs-hris/hris-sync/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	logger *slog.Logger,
	allowedOrigins []string,
	JWTService jwt.Service,
	permissionHandler PermissionHandler,
	syncHandler SyncHandler,
	collabHandler CollabHandler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	// Connectivity probe of the sync agents.
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		// SSE stream authenticates with a query token
		r.Get("/collab/stream", collabHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/permissions/{resourceType}/{resourceID}", func(r chi.Router) {
				r.Get("/", permissionHandler.GetPermissions)
				r.Get("/check", permissionHandler.Check)
			})
			r.Get("/boards/{boardID}/columns/visible", permissionHandler.VisibleColumns)
			r.Get("/columns/{columnID}/can-view", permissionHandler.CanViewColumn)

			r.Post("/sync", syncHandler.Sync)

			r.Route("/collab", func(r chi.Router) {
				r.Get("/sse-token", collabHandler.GetSSEToken)
				r.Get("/conflicts", collabHandler.ListOpen)
				r.Post("/conflicts/{id}/resolve", collabHandler.Resolve)
			})
		})
	})
	return r
}
