// Package app wires configuration into the catalog, cache, engine and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tripnav/internal/api"
	"tripnav/internal/auth"
	"tripnav/internal/cache"
	"tripnav/internal/config"
	"tripnav/internal/metrics"
	"tripnav/internal/opt"
	"tripnav/internal/ratelimit"
	"tripnav/internal/store"
)

// Deps holds the long-lived components built from configuration.
type Deps struct {
	Catalog   store.Catalog
	Engine    *opt.Engine
	Cache     *cache.Optimizer // nil when caching is off
	Optimizer opt.Optimizer
	closers   []func() error
}

// Close releases backends in reverse construction order.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Build constructs the catalog, engine and result cache.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Deps, error) {
	d := &Deps{}
	cat, closeCat, err := OpenCatalog(ctx, cfg.Catalog, log)
	if err != nil {
		return nil, err
	}
	if closeCat != nil {
		d.closers = append(d.closers, closeCat)
	}
	d.Catalog = cat
	if cfg.Catalog.RPS > 0 {
		d.Catalog = store.NewThrottled(cat, cfg.Catalog.RPS, cfg.Catalog.Burst)
	}

	d.Engine = opt.NewEngine(d.Catalog, EngineConfig(cfg), log.With("component", "engine"))
	d.Optimizer = d.Engine

	st, closeStore, err := OpenCacheStore(cfg.Cache)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	if st != nil {
		d.closers = append(d.closers, closeStore)
		d.Cache = cache.NewOptimizer(d.Engine, st, cfg.Cache.TTL, d.Engine.Defaults(), log.With("component", "cache"))
		d.Optimizer = d.Cache
	}
	return d, nil
}

func EngineConfig(cfg *config.Config) opt.Config {
	return opt.Config{
		Defaults: opt.Defaults{
			Currency: cfg.Optimizer.Currency,
			TopK:     cfg.Optimizer.TopK,
			Timeout:  cfg.Optimizer.Timeout,
		},
		AllowPartial:         cfg.Optimizer.AllowPartial,
		CatalogConcurrency:   cfg.Catalog.Concurrency,
		CandidateConcurrency: cfg.Optimizer.CandidateConcurrency,
	}
}

// OpenCatalog opens the configured price catalog. The returned close func is
// nil for the in-memory catalog.
func OpenCatalog(ctx context.Context, c config.Catalog, log *slog.Logger) (store.Catalog, func() error, error) {
	switch c.Driver {
	case "memory":
		if c.Seed == "" {
			log.Warn("memory catalog without a seed file; every search will come back empty")
			return store.NewMemory(), nil, nil
		}
		m, err := store.LoadSeed(c.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("load seed: %w", err)
		}
		log.Info("catalog seeded", "file", c.Seed, "quotes", m.Len())
		return m, nil, nil
	case "postgres", "sqlite":
		var (
			db  *store.SQL
			err error
		)
		if c.Driver == "postgres" {
			db, err = store.NewPostgres(ctx, c.DSN)
		} else {
			db, err = store.NewSQLite(ctx, c.DSN)
		}
		if err != nil {
			return nil, nil, err
		}
		if c.Migrate {
			n, err := db.Migrate(ctx)
			if err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			if n > 0 {
				log.Info("catalog migrated", "driver", c.Driver, "applied", n)
			}
		}
		if c.Seed != "" {
			log.Warn("seed file is only loaded by the memory catalog; use `tripnav import` for SQL catalogs", "file", c.Seed)
		}
		return db, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown catalog driver %q", c.Driver)
}

// OpenCacheStore opens the configured result cache backend; nil means caching is off.
func OpenCacheStore(c config.Cache) (cache.Store, func() error, error) {
	switch c.Backend {
	case "none":
		return nil, nil, nil
	case "redis":
		rs, err := cache.NewRedisStore(c.RedisURL, c.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		ms := cache.NewMemoryStore(time.Minute)
		return ms, func() error { ms.Close(); return nil }, nil
	}
}

// NewServer builds the HTTP handler set for deps.
func NewServer(cfg *config.Config, d *Deps, log *slog.Logger) *api.Server {
	var lim *ratelimit.Limiter
	if cfg.RateLimit.RPS > 0 {
		lim = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		d.closers = append(d.closers, func() error { lim.Close(); return nil })
	}
	return &api.Server{
		Optimizer: d.Optimizer,
		Engine:    d.Engine,
		Cache:     d.Cache,
		Catalog:   d.Catalog,
		Auth: auth.New(auth.Config{
			Mode:       cfg.Auth.Mode,
			HMACSecret: cfg.Auth.HMACSecret,
			JWKSURL:    cfg.Auth.JWKSURL,
			TierClaim:  cfg.Auth.TierClaim,
		}),
		Limiter:  lim,
		Log:      log.With("component", "api"),
		Settings: Settings(cfg),
	}
}

// Settings is the configuration summary without secrets.
func Settings(cfg *config.Config) map[string]any {
	return map[string]any{
		"http_addr":         cfg.HTTP.Addr,
		"catalog_driver":    cfg.Catalog.Driver,
		"catalog_rps":       cfg.Catalog.RPS,
		"has_database_url":  cfg.Catalog.DSN != "",
		"cache_backend":     cfg.Cache.Backend,
		"cache_ttl":         cfg.Cache.TTL.String(),
		"has_redis_url":     cfg.Cache.RedisURL != "",
		"optimizer_timeout": cfg.Optimizer.Timeout.String(),
		"allow_partial":     cfg.Optimizer.AllowPartial,
		"auth_mode":         cfg.Auth.Mode,
		"rate_rps":          cfg.RateLimit.RPS,
		"rate_burst":        cfg.RateLimit.Burst,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	metrics.RegisterDefault()
	deps, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error("close backends", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewServer(cfg, deps, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "catalog", cfg.Catalog.Driver, "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "err", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
