package api

import (
	"net/http"
	"time"

	"lane-defense/internal/metrics"
	"lane-defense/internal/render"
	"lane-defense/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Sessions: session.NewRegistry(opts, time.Minute),
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Sessions is the room registry (required)
	Sessions *session.Registry

	// WebSocket serves /ws. Optional so HTTP-only tests can skip it.
	WebSocket http.HandlerFunc

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost is allowed.
	CORSOrigins []string

	// Minimaps caches rendered PNGs. If nil, a default cache is created.
	Minimaps *render.Cache

	// Admin guards operator routes. If nil, they are disabled.
	Admin *AdminAuth

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds what the handler functions need
type routerHandlers struct {
	sessions *session.Registry
	minimaps *render.Cache
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It starts no goroutines beyond a rate limiter's cleanup when it has to create one,
// so it is safe to wrap in httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	minimaps := cfg.Minimaps
	if minimaps == nil {
		minimaps = render.NewCache(render.DefaultMaxMinimaps, render.DefaultScale)
	}
	h := &routerHandlers{
		sessions: cfg.Sessions,
		minimaps: minimaps,
	}

	r.Get("/health", h.handleHealth)

	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", h.handleListSessions)
		r.Get("/sessions/{id}", h.handleGetSession)
		r.Get("/sessions/{id}/minimap.png", h.handleMinimap)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Admin.Middleware)
			r.Delete("/sessions/{id}", h.handleCloseSession)
		})
	})

	return r
}

// requestMetrics records latency per route pattern so ids in paths do not
// become label values
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
