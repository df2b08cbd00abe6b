package opt

import (
	"context"
	"fmt"

	"tripnav/internal/model"
)

// Compare runs every search mode for req's trip and analyses the outcome.
func Compare(ctx context.Context, o Optimizer, req model.OptimizeRequest) (*model.CompareResult, error) {
	req.Custom = true
	req.SearchTypes = []model.SearchType{model.SearchAll}
	res, err := o.Optimize(ctx, req)
	if err != nil {
		return nil, err
	}
	analysis := Analyze(res)
	return &model.CompareResult{
		Success:  true,
		Result:   res,
		Analysis: analysis,
		Message:  fmt.Sprintf("Comparison completed across %d search types", len(analysis.SearchTypesExecuted)),
	}, nil
}

// Analyze computes per-mode cost statistics and recommendations for res.
func Analyze(res *model.SearchResult) model.Comparison {
	c := model.Comparison{
		SearchTypesExecuted: append([]model.SearchType{}, res.FiltersApplied.SearchTypes...),
		CostComparison:      map[model.SearchType]model.TypeStats{},
		Recommendations:     []string{},
	}
	byType := map[model.SearchType][]model.ItineraryOption{}
	for _, o := range res.AllOptions() {
		byType[o.SearchType] = append(byType[o.SearchType], o)
	}

	var best, worst *model.ItineraryOption
	cheapestType := model.SearchType("")
	var cheapestCost model.Money
	for _, st := range c.SearchTypesExecuted {
		opts := byType[st]
		if len(opts) == 0 {
			continue
		}
		stats := model.TypeStats{Count: len(opts), MinCost: opts[0].TotalCost, MaxCost: opts[0].TotalCost}
		var sum model.Money
		for i := range opts {
			o := &opts[i]
			sum += o.TotalCost
			stats.MinCost = min(stats.MinCost, o.TotalCost)
			stats.MaxCost = max(stats.MaxCost, o.TotalCost)
			if best == nil || o.Better(*best) {
				best = o
			}
			if worst == nil || o.TotalCost > worst.TotalCost {
				worst = o
			}
		}
		n := model.Money(len(opts))
		stats.AvgCost = (sum + n/2) / n
		c.CostComparison[st] = stats
		if cheapestType == "" || stats.MinCost < cheapestCost {
			cheapestType, cheapestCost = st, stats.MinCost
		}
	}

	if best == nil {
		c.Recommendations = append(c.Recommendations, "No feasible itineraries found; try widening the date range or reducing nights")
		return c
	}
	c.BestOverall = &model.BestSummary{
		SearchType: best.SearchType,
		Label:      best.Label,
		TotalCost:  best.TotalCost,
		Currency:   best.Currency,
		StartDate:  best.StartDate,
		EndDate:    best.EndDate,
	}
	if len(c.CostComparison) > 1 {
		c.Recommendations = append(c.Recommendations, fmt.Sprintf("'%s' search offers the lowest cost option", cheapestType))
	}
	if saving := worst.TotalCost - best.TotalCost; saving > 0 {
		c.Recommendations = append(c.Recommendations,
			fmt.Sprintf("Choosing %s (%s) saves %s %s over the most expensive option", best.Label, best.SearchType, saving, best.Currency))
	}
	return c
}
