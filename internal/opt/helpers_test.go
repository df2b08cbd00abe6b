package opt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tripnav/internal/model"
)

// fakeCatalog serves fixed quotes keyed by destination and date and counts calls.
type fakeCatalog struct {
	mu     sync.Mutex
	quotes map[string][]model.PriceQuote
	calls  int
	err    error
	delay  time.Duration
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{quotes: map[string][]model.PriceQuote{}}
}

func fakeKey(dest int64, date model.Date) string { return fmt.Sprintf("%d/%s", dest, date) }

func (f *fakeCatalog) set(dest int64, date string, quotes ...model.PriceQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[fakeKey(dest, model.MustDate(date))] = quotes
}

// fill quotes lodging id at a flat price for days consecutive nights from start.
func (f *fakeCatalog) fill(dest int64, start string, days int, id string, cents int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := model.MustDate(start)
	for i := range days {
		k := fakeKey(dest, d.AddDays(i))
		f.quotes[k] = append(f.quotes[k], quote(id, cents))
	}
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCatalog) Query(ctx context.Context, dest int64, _ *int64, date model.Date, _ string) ([]model.PriceQuote, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	delay := f.delay
	out := append([]model.PriceQuote(nil), f.quotes[fakeKey(dest, date)]...)
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func quote(id string, cents int64) model.PriceQuote {
	return model.PriceQuote{LodgingID: id, LodgingName: "Lodging " + id, Price: model.Money(cents), Currency: "USD"}
}

func destination(id int64, nights int) model.DestinationRequest {
	return model.DestinationRequest{DestinationID: id, Nights: nights}
}

func dateRange(start, end string) model.DateRange {
	return model.DateRange{Start: model.MustDate(start), End: model.MustDate(end)}
}

func newTestEngine(cat PriceCatalog) *Engine {
	return NewEngine(cat, Config{}, nil)
}
