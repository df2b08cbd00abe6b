// Package store holds the nightly price catalog backends the optimizer reads from.
package store

import (
	"context"
	"time"

	"tripnav/internal/model"
)

// Catalog answers which lodgings are available on a date and at what price.
// It satisfies opt.PriceCatalog.
type Catalog interface {
	Query(ctx context.Context, destinationID int64, areaID *int64, date model.Date, currency string) ([]model.PriceQuote, error)
	Ping(ctx context.Context) error
}

// Quote is one recorded nightly price as kept by the collection process.
// Several quotes may exist for a lodging and night; the latest recorded wins.
type Quote struct {
	DestinationID int64
	AreaID        *int64
	LodgingID     string
	LodgingName   string
	Date          model.Date
	Price         model.Money
	Currency      string
	Available     bool
	RecordedAt    time.Time
}
