package opt

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"tripnav/internal/model"
)

const (
	MaxDestinations = 10
	MaxNights       = 30
	MaxTopK         = 10
	MaxTimeout      = 5 * time.Minute

	longStayNights = 14
	tightBuffer    = 2
)

// Defaults fill in request fields the caller left empty.
type Defaults struct {
	Currency string
	TopK     int
	Timeout  time.Duration
}

func (d Defaults) withFallbacks() Defaults {
	if d.Currency == "" {
		d.Currency = "USD"
	}
	if d.TopK <= 0 {
		d.TopK = 3
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	return d
}

// Plan is a validated request with every default resolved.
type Plan struct {
	Request     model.OptimizeRequest
	SearchTypes []model.SearchType // concrete modes, in evaluation order
	Ranges      []model.DateRange  // effective sub-ranges for the ranges mode
	Timeout     time.Duration
	Warnings    []string
}

// TotalNights sums nights over the trip.
func (p Plan) TotalNights() int { return p.Request.TotalNights() }

// Normalize validates req and resolves defaults. It never touches the catalog.
// Destinations come back sorted by position with Order filled in, currency is
// upper-cased, and fixed dates are sorted and de-duplicated.
func Normalize(req model.OptimizeRequest, d Defaults) (Plan, error) {
	d = d.withFallbacks()
	verr := &ValidationError{}

	if req.Currency == "" {
		req.Currency = d.Currency
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		verr.add("currency", "must be a 3-letter code")
	}
	if req.TopK == 0 {
		req.TopK = d.TopK
	}
	if req.TopK < 1 || req.TopK > MaxTopK {
		verr.add("top_k", fmt.Sprintf("must be between 1 and %d", MaxTopK))
	}
	timeout := d.Timeout
	switch {
	case req.MaxOptimizationTimeMs < 0:
		verr.add("max_optimization_time_ms", "must not be negative")
	case req.MaxOptimizationTimeMs > 0:
		timeout = time.Duration(req.MaxOptimizationTimeMs) * time.Millisecond
		if timeout > MaxTimeout {
			verr.add("max_optimization_time_ms", fmt.Sprintf("must not exceed %d", MaxTimeout.Milliseconds()))
		}
	}

	req.Destinations = normalizeDestinations(req.Destinations, verr)

	g := req.GlobalDateRange
	rangeOK := true
	switch {
	case g.Start.IsZero() || g.End.IsZero():
		verr.add("global_date_range", "start and end are required")
		rangeOK = false
	case g.End.Before(g.Start):
		verr.add("global_date_range", "end must not be before start")
		rangeOK = false
	}
	total := req.TotalNights()
	if rangeOK && total > g.Days() {
		verr.add("destinations", fmt.Sprintf("total nights (%d) exceeds date range (%d days)", total, g.Days()))
	}

	types := normalizeSearchTypes(&req, verr)

	var ranges []model.DateRange
	if slices.Contains(types, model.SearchRanges) {
		for i, r := range req.Ranges {
			if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
				verr.add(fmt.Sprintf("ranges[%d]", i), "start and end are required and end must not be before start")
			}
		}
		ranges = req.Ranges
		if len(ranges) == 0 {
			if slices.Contains(req.SearchTypes, model.SearchAll) {
				if rangeOK {
					ranges = DefaultRanges(g)
				}
			} else {
				verr.missing("ranges", "required when search type ranges is requested")
			}
		}
	}
	if slices.Contains(types, model.SearchFixedDates) {
		for i, fd := range req.FixedDates {
			if fd.IsZero() {
				verr.add(fmt.Sprintf("fixed_dates[%d]", i), "must be a date")
			}
		}
		if len(req.FixedDates) == 0 && !slices.Contains(req.SearchTypes, model.SearchAll) {
			verr.missing("fixed_dates", "required when search type fixed_dates is requested")
		}
	}
	if len(req.FixedDates) > 0 {
		fixed := slices.Clone(req.FixedDates)
		slices.SortFunc(fixed, func(a, b model.Date) int { return a.Time().Compare(b.Time()) })
		req.FixedDates = slices.CompactFunc(fixed, model.Date.Equal)
	}
	if slices.Contains(req.SearchTypes, model.SearchAll) && len(req.FixedDates) == 0 {
		types = slices.DeleteFunc(types, func(t model.SearchType) bool { return t == model.SearchFixedDates })
	}

	if err := verr.orNil(); err != nil {
		return Plan{}, err
	}

	var warnings []string
	if g.Days()-total < tightBuffer {
		warnings = append(warnings, "Very tight date constraints - limited flexibility")
	}
	for _, dest := range req.Destinations {
		if dest.Nights > longStayNights {
			warnings = append(warnings, fmt.Sprintf("Destination %d has long stay (%d nights)", dest.DestinationID, dest.Nights))
		}
	}

	return Plan{
		Request:     req,
		SearchTypes: types,
		Ranges:      ranges,
		Timeout:     timeout,
		Warnings:    warnings,
	}, nil
}

func normalizeDestinations(in []model.DestinationRequest, verr *ValidationError) []model.DestinationRequest {
	switch {
	case len(in) == 0:
		verr.add("destinations", "at least one destination is required")
		return nil
	case len(in) > MaxDestinations:
		verr.add("destinations", fmt.Sprintf("at most %d destinations are allowed", MaxDestinations))
	}
	out := make([]model.DestinationRequest, len(in))
	seen := map[int]bool{}
	for i, dest := range in {
		field := fmt.Sprintf("destinations[%d]", i)
		if dest.DestinationID <= 0 {
			verr.add(field+".destination_id", "must be positive")
		}
		if dest.AreaID != nil && *dest.AreaID <= 0 {
			verr.add(field+".area_id", "must be positive")
		}
		if dest.Nights < 1 || dest.Nights > MaxNights {
			verr.add(field+".nights", fmt.Sprintf("must be between 1 and %d", MaxNights))
		}
		pos := dest.Position(i)
		if pos < 0 {
			verr.add(field+".order", "must not be negative")
		}
		if seen[pos] {
			verr.add(field+".order", fmt.Sprintf("duplicate order %d", pos))
		}
		seen[pos] = true
		dest.Order = &pos
		out[i] = dest
	}
	slices.SortStableFunc(out, func(a, b model.DestinationRequest) int { return *a.Order - *b.Order })
	return out
}

// normalizeSearchTypes resolves the concrete modes to run and rewrites
// req.SearchTypes into its canonical form.
func normalizeSearchTypes(req *model.OptimizeRequest, verr *ValidationError) []model.SearchType {
	if !req.Custom {
		req.SearchTypes = []model.SearchType{model.SearchNormal}
		return []model.SearchType{model.SearchNormal}
	}
	if len(req.SearchTypes) == 0 {
		verr.missing("search_types", "required when custom is true")
		return nil
	}
	var types []model.SearchType
	hasAll := false
	for i, t := range req.SearchTypes {
		if !t.Valid() {
			verr.add(fmt.Sprintf("search_types[%d]", i), fmt.Sprintf("unknown search type %q", t))
			continue
		}
		if t == model.SearchAll {
			hasAll = true
			continue
		}
		if !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	if hasAll {
		if len(types) > 0 {
			verr.add("search_types", "all cannot be combined with other search types")
			return nil
		}
		req.SearchTypes = []model.SearchType{model.SearchAll}
		return slices.Clone(model.ConcreteSearchTypes)
	}
	req.SearchTypes = slices.Clone(types)
	return types
}

// DefaultRanges splits a global range into overlapping early, mid and late
// sub-ranges. Ranges of a week or less are returned whole.
func DefaultRanges(g model.DateRange) []model.DateRange {
	days := g.Days()
	if days <= 7 {
		return []model.DateRange{g}
	}
	at := func(pct int) model.Date { return g.Start.AddDays(days * pct / 10) }
	return []model.DateRange{
		{Start: g.Start, End: at(4)},
		{Start: at(3), End: at(7)},
		{Start: at(6), End: g.End},
	}
}
