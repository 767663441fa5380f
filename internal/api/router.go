package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/social"
	"github.com/nexura/nexura-server/internal/websocket"
)

// NewRouter creates the HTTP router with all routes and middleware
func NewRouter(cfg *config.Config, accounts AccountStore, sessions SessionStore, providers *social.Registry, hub *websocket.Hub, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(RequestLogger(logger))
	r.Use(SecurityHeadersMiddleware(cfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "x-user-id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// The callback is hit by a provider redirect carrying no identity
		// headers; the flow cookies and the state parameter identify the
		// user instead.
		r.Post("/auth/{provider}", HandleAuthorize(cfg, sessions, providers, logger))
		r.Get("/auth/{provider}/callback", HandleCallback(cfg, accounts, sessions, providers, hub, logger))

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(cfg.JWTSecret))

			r.Get("/user/document", HandleGetUserDocument(accounts, logger))
			r.Post("/{provider}/post", HandleCreatePost(accounts, providers, hub, logger))
		})
	})

	if hub != nil {
		r.Get("/ws", hub.HandleWebSocket)
	}

	return r
}
