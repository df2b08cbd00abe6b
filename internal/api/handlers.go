package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tripnav/internal/access"
	"tripnav/internal/cache"
	"tripnav/internal/model"
	"tripnav/internal/opt"
)

// OptimizeHandler handles POST /v1/itineraries/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	var req model.OptimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	res, err := s.Optimizer.Optimize(r.Context(), req)
	if err != nil {
		s.writeOptimizeError(w, r, err)
		return
	}
	p := principalFrom(r.Context())
	s.logger().Info("itinerary optimized",
		"request_id", RequestID(r.Context()),
		"tier", p.Tier,
		"hash", res.RequestHash,
		"options", len(res.AllOptions()),
		"cache_hit", res.Metadata.CacheHit,
	)
	writeJSON(w, http.StatusOK, access.Filter(res, p.Tier, s.today()))
}

// CompareHandler handles POST /v1/itineraries/compare (logged-in callers only).
func (s *Server) CompareHandler(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !requireTier(p, model.TierAuthenticated, model.TierAdmin) {
		writeProblem(w, http.StatusUnauthorized, "Authentication required", "log in to compare search types", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	res, err := opt.Compare(r.Context(), s.Optimizer, req)
	if err != nil {
		s.writeOptimizeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CachedHandler handles GET /v1/itineraries/cached/{hash}
func (s *Server) CachedHandler(w http.ResponseWriter, r *http.Request) {
	if s.Cache == nil {
		writeProblem(w, http.StatusNotFound, "Result caching disabled", "", r.URL.Path)
		return
	}
	hash := chi.URLParam(r, "hash")
	res, err := s.Cache.Get(r.Context(), hash)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Cached result not found or expired", "", r.URL.Path)
		return
	case err != nil:
		s.logger().Warn("cache read failed", "hash", hash, "err", err)
		writeProblem(w, http.StatusServiceUnavailable, "Cache unavailable", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, access.Filter(res, principalFrom(r.Context()).Tier, s.today()))
}

// InvalidateHandler handles DELETE /v1/itineraries/cache/{hash} (admin only).
func (s *Server) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !requireTier(p, model.TierAdmin) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if s.Cache == nil {
		writeProblem(w, http.StatusNotFound, "Result caching disabled", "", r.URL.Path)
		return
	}
	hash := chi.URLParam(r, "hash")
	err := s.Cache.Invalidate(r.Context(), hash)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Cached result not found", "", r.URL.Path)
	case err != nil:
		s.logger().Warn("cache invalidate failed", "hash", hash, "err", err)
		writeProblem(w, http.StatusServiceUnavailable, "Cache unavailable", "", r.URL.Path)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Cached result cleared", "request_hash": hash})
	}
}

// OptimizerConfigHandler returns the defaults applied to requests.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.Engine.Config()
	writeJSON(w, http.StatusOK, map[string]any{"defaults": map[string]any{
		"currency":                 cfg.Currency,
		"top_k":                    cfg.TopK,
		"max_optimization_time_ms": cfg.Timeout.Milliseconds(),
		"allow_partial":            cfg.AllowPartial,
		"catalog_concurrency":      cfg.CatalogConcurrency,
		"candidate_concurrency":    cfg.CandidateConcurrency,
		"search_types":             model.ConcreteSearchTypes,
		"limits": map[string]any{
			"max_destinations":          opt.MaxDestinations,
			"max_nights":                opt.MaxNights,
			"max_top_k":                 opt.MaxTopK,
			"max_optimization_ms":       opt.MaxTimeout.Milliseconds(),
			"single_provider_tolerance": 1.2,
		},
		"cache_enabled": s.Cache != nil,
	}})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler pings the price catalog and the cache backend.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	checks := map[string]string{}
	ready := true
	if s.Catalog != nil {
		checks["catalog"] = "ok"
		if err := s.Catalog.Ping(ctx); err != nil {
			checks["catalog"] = err.Error()
			ready = false
		}
	}
	if s.Cache != nil {
		checks["cache"] = "ok"
		if err := s.Cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			ready = false
		}
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": checks})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}
