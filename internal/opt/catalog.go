package opt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"tripnav/internal/metrics"
	"tripnav/internal/model"
)

// PriceCatalog returns the lodgings available on a date at a destination.
// Implementations live in internal/store.
type PriceCatalog interface {
	Query(ctx context.Context, destinationID int64, areaID *int64, date model.Date, currency string) ([]model.PriceQuote, error)
}

// requestCatalog wraps the shared catalog for a single optimization. Candidate
// windows overlap heavily, so each (destination, area, date) is fetched once;
// concurrent catalog calls are bounded by sem.
type requestCatalog struct {
	ctx      context.Context
	next     PriceCatalog
	currency string
	sem      *semaphore.Weighted
	group    singleflight.Group

	mu       sync.Mutex
	quotes   map[string][]model.PriceQuote
	lodgings map[string]struct{}
	queries  int
}

func newRequestCatalog(ctx context.Context, next PriceCatalog, currency string, limit int) *requestCatalog {
	if limit < 1 {
		limit = 1
	}
	return &requestCatalog{
		ctx:      ctx,
		next:     next,
		currency: currency,
		sem:      semaphore.NewWeighted(int64(limit)),
		quotes:   map[string][]model.PriceQuote{},
		lodgings: map[string]struct{}{},
	}
}

func quoteKey(destinationID int64, areaID *int64, date model.Date) string {
	if areaID == nil {
		return fmt.Sprintf("%d/-/%s", destinationID, date)
	}
	return fmt.Sprintf("%d/%d/%s", destinationID, *areaID, date)
}

// nightQuotes returns the normalized quotes for one night.
func (c *requestCatalog) nightQuotes(ctx context.Context, destinationID int64, areaID *int64, date model.Date) ([]model.PriceQuote, error) {
	key := quoteKey(destinationID, areaID, date)
	c.mu.Lock()
	if q, ok := c.quotes[key]; ok {
		c.mu.Unlock()
		return q, nil
	}
	c.mu.Unlock()

	// Fetches run on the request context, not the caller's.
	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		q, ok := c.quotes[key]
		c.mu.Unlock()
		if ok {
			return q, nil
		}
		if err := c.sem.Acquire(c.ctx, 1); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)
		raw, err := c.next.Query(c.ctx, destinationID, areaID, date, c.currency)
		if err != nil {
			metrics.CatalogQueries.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("price catalog: destination %d on %s: %w", destinationID, date, err)
		}
		metrics.CatalogQueries.WithLabelValues("ok").Inc()
		q = normalizeQuotes(raw, date, c.currency)
		c.mu.Lock()
		c.queries++
		c.quotes[key] = q
		for _, pq := range q {
			c.lodgings[pq.LodgingID] = struct{}{}
		}
		c.mu.Unlock()
		return q, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.PriceQuote), nil
	}
}

func (c *requestCatalog) stats() (queries, lodgings int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries, len(c.lodgings)
}

// normalizeQuotes drops unusable quotes and keeps the lowest price when a
// lodging is listed more than once for the night.
func normalizeQuotes(in []model.PriceQuote, date model.Date, currency string) []model.PriceQuote {
	out := make([]model.PriceQuote, 0, len(in))
	idx := map[string]int{}
	for _, q := range in {
		if q.LodgingID == "" || q.Price <= 0 {
			continue
		}
		if q.Currency != "" && !strings.EqualFold(q.Currency, currency) {
			continue
		}
		q.Currency = currency
		q.Date = date
		if i, ok := idx[q.LodgingID]; ok {
			if q.Price < out[i].Price {
				out[i] = q
			}
			continue
		}
		idx[q.LodgingID] = len(out)
		out = append(out, q)
	}
	return out
}
