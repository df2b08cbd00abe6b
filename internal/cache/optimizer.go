package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"tripnav/internal/metrics"
	"tripnav/internal/model"
	"tripnav/internal/opt"
)

// Optimizer wraps an opt.Optimizer with a result cache. Identical requests
// arriving while one is being computed share that computation. A failing
// store degrades to direct computation.
type Optimizer struct {
	next     opt.Optimizer
	store    Store
	ttl      time.Duration
	defaults opt.Defaults
	group    singleflight.Group
	log      *slog.Logger
	now      func() time.Time
}

// NewOptimizer decorates next. defaults must match the ones next applies so
// fingerprints agree.
func NewOptimizer(next opt.Optimizer, store Store, ttl time.Duration, defaults opt.Defaults, log *slog.Logger) *Optimizer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Optimizer{next: next, store: store, ttl: ttl, defaults: defaults, log: log, now: time.Now}
}

func (c *Optimizer) Optimize(ctx context.Context, req model.OptimizeRequest) (*model.SearchResult, error) {
	plan, err := opt.Normalize(req, c.defaults)
	if err != nil {
		return nil, err
	}
	if !req.CacheEnabled() {
		metrics.CacheLookups.WithLabelValues("bypass").Inc()
		return c.next.Optimize(ctx, req)
	}
	key := plan.Fingerprint()
	if res, ok := c.lookup(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return res, nil
	}

	// The shared computation ignores the starting caller's cancellation.
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key, plan, req), func() (any, error) {
		if res, ok := c.lookup(fctx, key); ok {
			return res, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		res, err := c.next.Optimize(fctx, req)
		if err != nil {
			return nil, err
		}
		if res.Success && !res.Metadata.Partial {
			c.save(fctx, key, res)
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			metrics.CacheLookups.WithLabelValues("shared").Inc()
		}
		return r.Val.(*model.SearchResult).Clone(), nil
	}
}

// flightKey groups callers that may share one computation: same fingerprint,
// same time budget and same tolerance for partial results.
func flightKey(key string, plan opt.Plan, req model.OptimizeRequest) string {
	return key + "|" + strconv.FormatInt(plan.Timeout.Milliseconds(), 10) + "|" + strconv.FormatBool(req.AllowPartial)
}

// Get returns the cached result for a fingerprint, marked as a cache hit.
func (c *Optimizer) Get(ctx context.Context, fingerprint string) (*model.SearchResult, error) {
	e, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	res := e.Result.Clone()
	res.Metadata.CacheHit = true
	return res, nil
}

// Invalidate drops the entry for a fingerprint. It reports ErrNotFound when
// there was nothing to drop.
func (c *Optimizer) Invalidate(ctx context.Context, fingerprint string) error {
	removed, err := c.store.Delete(ctx, fingerprint)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	c.log.Info("cache entry invalidated", "hash", fingerprint)
	return nil
}

// Ping checks the cache backend.
func (c *Optimizer) Ping(ctx context.Context) error { return c.store.Ping(ctx) }

func (c *Optimizer) lookup(ctx context.Context, key string) (*model.SearchResult, bool) {
	e, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		res := e.Result.Clone()
		res.Metadata.CacheHit = true
		return res, true
	case errors.Is(err, ErrNotFound):
		return nil, false
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.log.Warn("cache lookup failed, computing directly", "hash", key, "err", err)
		return nil, false
	}
}

func (c *Optimizer) save(ctx context.Context, key string, res *model.SearchResult) {
	now := c.now()
	stored := res.Clone()
	stored.Metadata.CacheHit = false
	err := c.store.Put(ctx, Entry{Fingerprint: key, Result: stored, ComputedAt: now, ExpiresAt: now.Add(c.ttl)})
	if err != nil {
		c.log.Warn("cache store failed", "hash", key, "err", err)
	}
}
