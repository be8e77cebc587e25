// Package server provides the HTTP server and its routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/valentinpelus/voiceboard/internal/handler"
	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/internal/middleware"
)

// Handlers groups the per-tab handlers the router dispatches to
type Handlers struct {
	Feedback *handler.FeedbackHandler
	Import   *handler.ImportHandler
	Ingest   *handler.IngestHandler
	Stats    *handler.StatsHandler
	Chat     *handler.ChatHandler
}

// Server wraps the HTTP server
type Server struct {
	port            string
	router          chi.Router
	authMiddleware  *middleware.AuthMiddleware
	shutdownTimeout time.Duration
}

// New creates a new HTTP server
func New(port, authToken string, shutdownTimeout time.Duration, h Handlers) *Server {
	s := &Server{
		port:            port,
		authMiddleware:  middleware.NewAuthMiddleware(authToken),
		shutdownTimeout: shutdownTimeout,
	}
	s.setupRoutes(h)
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(h Handlers) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", handler.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		r.Route("/feedbacks", func(r chi.Router) {
			r.Get("/", h.Feedback.List)
			r.Post("/", h.Feedback.Create)
			r.Delete("/", h.Feedback.Clear)
			r.Post("/bulk", h.Feedback.Bulk)
			r.Get("/export", h.Feedback.Export)
			r.Get("/{id}", h.Feedback.Get)
			r.Patch("/{id}", h.Feedback.Update)
			r.Delete("/{id}", h.Feedback.Delete)
		})
		r.Get("/products", h.Feedback.Products)

		r.Route("/import", func(r chi.Router) {
			r.Post("/csv", h.Import.Upload)
			r.Post("/{stageID}/confirm", h.Import.Confirm)
			r.Delete("/{stageID}", h.Import.Discard)
		})
		r.Post("/ingest", h.Ingest.Ingest)

		r.Route("/stats", func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Get("/summary", h.Stats.Summary)
			r.Get("/types", h.Stats.Types)
			r.Get("/monthly", h.Stats.Monthly)
			r.Get("/daily", h.Stats.Daily)
			r.Get("/trends", h.Stats.Trends)
		})

		r.Get("/assistant/quick-actions", h.Chat.QuickActions)
		r.Get("/assistant/ping", h.Chat.Ping)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", h.Chat.Create)
			r.Get("/{id}", h.Chat.History)
			r.Delete("/{id}", h.Chat.Delete)
			r.Post("/{id}/messages", h.Chat.Ask)
			r.Post("/{id}/retry", h.Chat.Retry)
			r.Post("/{id}/reset", h.Chat.Reset)
			r.Post("/{id}/share", h.Chat.Share)
		})
	})

	s.router = r
}

// Start serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr, "auth", s.authMiddleware.Enabled())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
