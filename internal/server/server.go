// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"slonstudy/internal/config"
	"slonstudy/internal/domain/spot"
	"slonstudy/internal/server/handlers"
	"slonstudy/internal/service/session"
	spotService "slonstudy/internal/service/spot"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server. natsConn may be nil.
func NewServer(
	cfg config.ServerConfig,
	natsConn *nats.Conn,
	fetcher spot.Fetcher,
	suggester *spotService.Suggester,
	sessionManager *session.Manager,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	spotHandler := handlers.NewSpotHandler(fetcher, suggester)
	sessionHandler := handlers.NewSessionHandler(sessionManager)

	// Routes
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Stateless spot lookups
			r.Route("/spots", func(r chi.Router) {
				r.Get("/", spotHandler.ListSpots)
				r.Get("/suggest", spotHandler.SuggestSpots)
			})

			// Map sessions
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.ListSessions)
				r.Post("/", sessionHandler.CreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", sessionHandler.GetSession)
					r.Delete("/", sessionHandler.DeleteSession)
					r.Post("/viewport", sessionHandler.LoadViewport)
					r.Put("/search", sessionHandler.SetSearchText)
					r.Post("/markers/{markerID}/tap", sessionHandler.TapMarker)
					r.Post("/map/tap", sessionHandler.TapMap)
					r.Post("/map/touch", sessionHandler.TouchMap)
					r.Post("/suggestions/{index}/select", sessionHandler.SelectSuggestion)
				})
			})
		})
	})

	// WebSocket endpoint for the live render stream
	router.Get("/ws/sessions/{id}", handlers.SessionWebSocketHandler(sessionManager, natsConn))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler returns the router, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
