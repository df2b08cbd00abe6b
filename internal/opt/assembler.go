package opt

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tripnav/internal/model"
)

// assemble lays the destinations out back to back from w.Start and solves
// each stay. Any destination without availability discards the whole window;
// the first failure cancels the remaining destinations.
func assemble(ctx context.Context, cat *requestCatalog, w Window, dests []model.DestinationRequest) (model.ItineraryOption, error) {
	results := make([]model.DestinationResult, len(dests))
	g, gctx := errgroup.WithContext(ctx)
	start := w.Start
	for i, dest := range dests {
		stayStart := start
		g.Go(func() error {
			res, err := solveDestination(gctx, cat, dest, stayStart)
			results[i] = res
			return err
		})
		start = start.AddDays(dest.Nights)
	}
	if err := g.Wait(); err != nil {
		return model.ItineraryOption{}, err
	}

	opt := model.ItineraryOption{
		SearchType:            w.SearchType,
		Label:                 w.Label,
		Destinations:          results,
		Currency:              cat.currency,
		StartDate:             w.Start,
		EndDate:               results[len(results)-1].EndDate,
		AlternativesGenerated: 1,
	}
	for _, r := range results {
		opt.TotalCost += r.TotalCost
		opt.TotalNights += r.Nights
		if r.SingleProvider {
			opt.SingleProviderDestinations++
		}
	}
	return opt, nil
}
