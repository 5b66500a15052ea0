package adminapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sioux/pubsub/internal/pubsub"
	"github.com/sioux/pubsub/internal/server"
)

// Server wraps the chi router and stdlib http.Server for the admin API.
type Server struct {
	httpServer *http.Server
	router     chi.Router
}

// NewServer wires every admin route (SPEC_FULL §6) against root's live
// node/configuration state and registry's live connection set. adminToken
// protects every /api/ route except /healthz; registry may be nil if the
// caller has no interest in exposing connection listings.
func NewServer(addr, adminToken string, root *pubsub.Root, configs *pubsub.ConfigurationList, registry *server.Registry) *Server {
	r := chi.NewRouter()

	r.Get("/healthz", HandleHealthz())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(authMiddleware(adminToken))

		api.Get("/configurations", HandleListConfigurations(configs))
		api.Post("/configurations", HandleCreateConfiguration(configs))
		api.Delete("/configurations/{label}", HandleDeleteConfiguration(configs))

		api.Get("/nodes", HandleListNodes(root))
		api.Get("/nodes/{name}", HandleGetNode(root))

		if registry != nil {
			api.Get("/connections", HandleListConnections(registry))
		}
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: r},
		router:     r,
	}
}

// authMiddleware mirrors Resin's internal/api.AuthMiddleware: a Bearer
// token compared against adminToken, guarding every route it wraps. An
// empty adminToken disables the check.
func authMiddleware(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if adminToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if auth == "" || !strings.HasPrefix(auth, prefix) || auth[len(prefix):] != adminToken {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
