package opt

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tripnav/internal/model"
)

// Convenience tolerance: one lodging for the whole stay is preferred while it
// costs at most 6/5 (120%) of the day-by-day cheapest plan. Costs are integer
// cents, so the comparison is exact.
const (
	toleranceNum = 6
	toleranceDen = 5
)

// preferSingle reports whether a single-provider cost is within tolerance of
// the daily-cheapest cost. Ties favor the single provider.
func preferSingle(single, daily model.Money) bool {
	return single*toleranceDen <= daily*toleranceNum
}

// solveDestination computes the cheapest lodging assignment for one
// destination stay starting at start.
func solveDestination(ctx context.Context, cat *requestCatalog, dest model.DestinationRequest, start model.Date) (model.DestinationResult, error) {
	nights := make([][]model.PriceQuote, dest.Nights)
	g, gctx := errgroup.WithContext(ctx)
	for i := range dest.Nights {
		g.Go(func() error {
			q, err := cat.nightQuotes(gctx, dest.DestinationID, dest.AreaID, start.AddDays(i))
			nights[i] = q
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.DestinationResult{}, err
	}
	assignments, single, err := assignLodgings(nights)
	if err != nil {
		return model.DestinationResult{}, fmt.Errorf("destination %d from %s: %w", dest.DestinationID, start, err)
	}
	res := model.DestinationResult{
		DestinationID:  dest.DestinationID,
		AreaID:         dest.AreaID,
		Order:          dest.Position(0),
		Nights:         dest.Nights,
		StartDate:      start,
		EndDate:        start.AddDays(dest.Nights - 1),
		Currency:       cat.currency,
		SingleProvider: single,
		Assignments:    assignments,
	}
	used := map[string]struct{}{}
	for _, a := range assignments {
		res.TotalCost += a.Price
		used[a.LodgingID] = struct{}{}
	}
	res.LodgingCount = len(used)
	return res, nil
}

// assignLodgings picks between the cheapest single-provider stay and the
// per-night cheapest plan. nights[i] holds the quotes for night i.
func assignLodgings(nights [][]model.PriceQuote) ([]model.HotelAssignment, bool, error) {
	if len(nights) == 0 {
		return nil, false, fmt.Errorf("empty stay: %w", ErrNoAvailability)
	}

	// daily cheapest
	daily := make([]model.PriceQuote, len(nights))
	var dailyCost model.Money
	for i, quotes := range nights {
		if len(quotes) == 0 {
			return nil, false, fmt.Errorf("night %d has no lodging: %w", i+1, ErrNoAvailability)
		}
		best := quotes[0]
		for _, q := range quotes[1:] {
			if q.Price < best.Price || (q.Price == best.Price && q.LodgingID < best.LodgingID) {
				best = q
			}
		}
		daily[i] = best
		dailyCost += best.Price
	}

	// single provider: lodgings quoted on every night
	type stay struct {
		total  model.Money
		quotes []model.PriceQuote
	}
	stays := map[string]*stay{}
	for i, quotes := range nights {
		for _, q := range quotes {
			s, ok := stays[q.LodgingID]
			if !ok {
				if i > 0 {
					continue
				}
				s = &stay{}
				stays[q.LodgingID] = s
			}
			if len(s.quotes) != i {
				continue
			}
			s.total += q.Price
			s.quotes = append(s.quotes, q)
		}
	}
	var bestID string
	var best *stay
	for id, s := range stays {
		if len(s.quotes) != len(nights) {
			continue
		}
		if best == nil || s.total < best.total || (s.total == best.total && id < bestID) {
			bestID, best = id, s
		}
	}

	if best != nil && preferSingle(best.total, dailyCost) {
		return toAssignments(best.quotes, model.ReasonSingleProvider), true, nil
	}
	return toAssignments(daily, model.ReasonCheapestDay), false, nil
}

func toAssignments(quotes []model.PriceQuote, reason model.SelectionReason) []model.HotelAssignment {
	out := make([]model.HotelAssignment, len(quotes))
	for i, q := range quotes {
		out[i] = model.HotelAssignment{
			LodgingID:       q.LodgingID,
			LodgingName:     q.LodgingName,
			Date:            q.Date,
			Price:           q.Price,
			Currency:        q.Currency,
			SelectionReason: reason,
		}
	}
	return out
}
