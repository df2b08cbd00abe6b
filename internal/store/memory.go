package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"tripnav/internal/model"
)

// Memory is an in-memory catalog used for development, tests and seed files.
type Memory struct {
	mu     sync.RWMutex
	quotes map[memKey][]Quote // destination+date -> recorded quotes
}

type memKey struct {
	destinationID int64
	date          string
}

func NewMemory() *Memory {
	return &Memory{quotes: map[memKey][]Quote{}}
}

// Add records quotes. Currency codes are stored upper-cased.
func (m *Memory) Add(quotes ...Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quotes {
		q.Currency = strings.ToUpper(q.Currency)
		k := memKey{q.DestinationID, q.Date.String()}
		m.quotes[k] = append(m.quotes[k], q)
	}
}

// Len returns the number of recorded quotes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, qs := range m.quotes {
		n += len(qs)
	}
	return n
}

// Query returns the latest recorded quote per lodging. Lodgings whose latest
// quote marks them unavailable are left out.
func (m *Memory) Query(ctx context.Context, destinationID int64, areaID *int64, date model.Date, currency string) ([]model.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	currency = strings.ToUpper(currency)
	m.mu.RLock()
	recorded := m.quotes[memKey{destinationID, date.String()}]
	latest := map[string]Quote{}
	for _, q := range recorded {
		if q.Currency != currency {
			continue
		}
		if areaID != nil && (q.AreaID == nil || *q.AreaID != *areaID) {
			continue
		}
		if prev, ok := latest[q.LodgingID]; ok && q.RecordedAt.Before(prev.RecordedAt) {
			continue
		}
		latest[q.LodgingID] = q
	}
	m.mu.RUnlock()

	out := make([]model.PriceQuote, 0, len(latest))
	for _, q := range latest {
		if !q.Available {
			continue
		}
		out = append(out, model.PriceQuote{
			LodgingID:   q.LodgingID,
			LodgingName: q.LodgingName,
			Date:        q.Date,
			Price:       q.Price,
			Currency:    q.Currency,
		})
	}
	slices.SortFunc(out, func(a, b model.PriceQuote) int { return strings.Compare(a.LodgingID, b.LodgingID) })
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
