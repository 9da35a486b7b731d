// Package api exposes the HTTP surface: the provider webhook receiver and
// the admin endpoints for triggering syncs.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/listsync/internal/config"
)

// Server represents the API server
type Server struct {
	config config.ServerConfig
	router *chi.Mux
	server *http.Server
}

// NewServer creates the API server and mounts all routes.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestID)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", h.HealthCheck)

	// The provider validates webhook URLs with a GET before saving them.
	router.Get("/webhooks/mailchimp/{shortcut}", h.WebhookPing)
	router.Post("/webhooks/mailchimp/{shortcut}", h.ReceiveWebhook)

	router.Route("/api", func(r chi.Router) {
		r.Post("/sync/run", h.TriggerQueueRun)
		r.Post("/sync/{shortcut}/segments", h.TriggerSegmentSync)
		r.Post("/customers/{id}/subscribe", h.SubscribeCustomer)
		r.Post("/customers/{id}/unsubscribe", h.UnsubscribeCustomer)
		r.Get("/customers/{id}/activities", h.CustomerActivities)
	})

	return &Server{config: cfg, router: router}
}

// Handler returns the mounted router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("[API] listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthDeps are the dependencies probed by the health endpoint. Either may
// be nil, which reports the component as not configured.
type HealthDeps struct {
	DB    *sql.DB
	Redis *redis.Client
}
