package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"lane-defense/internal/config"
	"lane-defense/internal/render"
	"lane-defense/internal/session"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
type Server struct {
	sessions    *session.Registry
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates the API server. Nothing listens until Start.
func NewServer(sessions *session.Registry, cfg config.ServerConfig) *Server {
	s := &Server{
		sessions:    sessions,
		wsHub:       NewWebSocketHub(sessions, cfg.CORSOrigins, cfg.CommandsPerSecond, cfg.CommandBurst),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Sessions:    sessions,
		WebSocket:   s.wsHub.HandleWebSocket,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		Minimaps:    render.NewCache(render.DefaultMaxMinimaps, render.DefaultScale),
		Admin:       NewAdminAuth(cfg.AdminToken),
	})
	return s
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Join: ws://localhost%s/ws?mode=solo", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests and closes every room.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.sessions.CloseAll()
	s.rateLimiter.Stop()
	return err
}
