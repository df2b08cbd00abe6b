// Package api exposes the itinerary optimizer over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripnav/internal/auth"
	"tripnav/internal/cache"
	"tripnav/internal/metrics"
	"tripnav/internal/model"
	"tripnav/internal/opt"
	"tripnav/internal/ratelimit"
	"tripnav/internal/store"
)

type Server struct {
	// Optimizer serves requests; usually the cache decorator around Engine.
	Optimizer opt.Optimizer
	Engine    *opt.Engine
	// Cache is nil when result caching is disabled.
	Cache   *cache.Optimizer
	Catalog store.Catalog
	Auth    *auth.Verifier
	// Limiter is nil when per-client rate limiting is disabled.
	Limiter *ratelimit.Limiter
	Log     *slog.Logger
	// Settings is the effective non-secret configuration shown by /v1/debug/build.
	Settings map[string]any
	Now      func() time.Time
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Log
}

func (s *Server) today() model.Date {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return model.DateOf(now())
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.requestID, s.logRequests, s.instrument)

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", s.OpenAPIHandler)
	r.Get("/openapi.json", s.OpenAPIJSONHandler)
	r.Get("/docs", s.DocsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate, s.rateLimit)
		r.Get("/optimizer/config", s.OptimizerConfigHandler)
		r.Get("/debug/build", s.DebugJSON)
		r.Route("/itineraries", func(r chi.Router) {
			r.Post("/optimize", s.OptimizeHandler)
			r.Post("/compare", s.CompareHandler)
			r.Get("/cached/{hash}", s.CachedHandler)
			r.Delete("/cache/{hash}", s.InvalidateHandler)
			r.Get("/stream", s.StreamHandler)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
	})
	return r
}
