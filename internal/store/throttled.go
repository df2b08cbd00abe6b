package store

import (
	"context"

	"golang.org/x/time/rate"

	"tripnav/internal/model"
)

// Throttled limits the rate of queries sent to an upstream catalog.
type Throttled struct {
	next    Catalog
	limiter *rate.Limiter
}

// NewThrottled allows perSecond queries with the given burst. A non-positive
// rate disables the limit.
func NewThrottled(next Catalog, perSecond float64, burst int) *Throttled {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) Query(ctx context.Context, destinationID int64, areaID *int64, date model.Date, currency string) ([]model.PriceQuote, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Query(ctx, destinationID, areaID, date, currency)
}

func (t *Throttled) Ping(ctx context.Context) error { return t.next.Ping(ctx) }
