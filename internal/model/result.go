package model

// SelectionReason records which assignment strategy produced a night.
type SelectionReason string

const (
	ReasonSingleProvider SelectionReason = "single_provider"
	ReasonCheapestDay    SelectionReason = "cheapest_day"
)

// HotelAssignment is one night at one lodging.
type HotelAssignment struct {
	LodgingID       string          `json:"lodging_id"`
	LodgingName     string          `json:"lodging_name"`
	Date            Date            `json:"date"`
	Price           Money           `json:"price"`
	Currency        string          `json:"currency"`
	SelectionReason SelectionReason `json:"selection_reason"`
	Masked          bool            `json:"masked,omitempty"`
}

// DestinationResult is the cheapest lodging plan for one destination window.
type DestinationResult struct {
	DestinationID  int64             `json:"destination_id"`
	AreaID         *int64            `json:"area_id,omitempty"`
	Order          int               `json:"order"`
	Nights         int               `json:"nights"`
	StartDate      Date              `json:"start_date"`
	EndDate        Date              `json:"end_date"`
	TotalCost      Money             `json:"total_cost"`
	Currency       string            `json:"currency"`
	LodgingCount   int               `json:"lodging_count"`
	SingleProvider bool              `json:"single_provider"`
	Assignments    []HotelAssignment `json:"assignments"`
	Masked         bool              `json:"masked,omitempty"`
}

// ItineraryOption is one complete trip proposal.
type ItineraryOption struct {
	SearchType                 SearchType          `json:"search_type"`
	Label                      string              `json:"label"`
	Destinations               []DestinationResult `json:"destinations"`
	TotalCost                  Money               `json:"total_cost"`
	Currency                   string              `json:"currency"`
	TotalNights                int                 `json:"total_nights"`
	StartDate                  Date                `json:"start_date"`
	EndDate                    Date                `json:"end_date"`
	SingleProviderDestinations int                 `json:"single_provider_destinations"`
	AlternativesGenerated      int                 `json:"alternatives_generated"`
	Masked                     bool                `json:"masked,omitempty"`
}

// DistinctLodgings counts the lodgings used across all destinations.
func (o ItineraryOption) DistinctLodgings() int {
	seen := map[string]struct{}{}
	for _, d := range o.Destinations {
		for _, a := range d.Assignments {
			seen[a.LodgingID] = struct{}{}
		}
	}
	return len(seen)
}

// Better reports whether o ranks ahead of other: lower cost, then earlier
// start, then fewer distinct lodgings.
func (o ItineraryOption) Better(other ItineraryOption) bool {
	if o.TotalCost != other.TotalCost {
		return o.TotalCost < other.TotalCost
	}
	if !o.StartDate.Equal(other.StartDate) {
		return o.StartDate.Before(other.StartDate)
	}
	return o.DistinctLodgings() < other.DistinctLodgings()
}

// MonthlyOptions groups normal-mode options starting in the same calendar month.
type MonthlyOptions struct {
	Month   string            `json:"month"`
	Options []ItineraryOption `json:"options"`
}

// NormalResults holds normal-mode options, flat or grouped by month.
type NormalResults struct {
	Options        []ItineraryOption `json:"options"`
	MonthlyOptions []MonthlyOptions  `json:"monthly_options,omitempty"`
}

// OptionList holds ranked options for ranges and fixed_dates modes.
type OptionList struct {
	Results []ItineraryOption `json:"results"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	ProcessingTimeMs      int64  `json:"processing_time_ms"`
	CacheHit              bool   `json:"cache_hit"`
	AlternativesGenerated int    `json:"alternatives_generated"`
	BestCostFound         *Money `json:"best_cost_found"`
	PriceQueries          int    `json:"price_queries"`
	LodgingsSeen          int    `json:"lodgings_seen"`
	CandidatesEvaluated   int    `json:"candidates_evaluated"`
	Partial               bool   `json:"partial,omitempty"`
}

// FiltersApplied echoes the effective request parameters.
type FiltersApplied struct {
	SearchTypes []SearchType `json:"search_types"`
	Custom      bool         `json:"custom"`
	Currency    string       `json:"currency"`
}

// AccessNotice tells a restricted caller how to see full results.
type AccessNotice struct {
	Message  string   `json:"message"`
	Benefits []string `json:"benefits,omitempty"`
}

// SearchResult is the full optimization response.
type SearchResult struct {
	Success        bool             `json:"success"`
	RequestHash    string           `json:"request_hash"`
	Normal         *NormalResults   `json:"normal,omitempty"`
	Ranges         *OptionList      `json:"ranges,omitempty"`
	FixedDates     *OptionList      `json:"fixed_dates,omitempty"`
	BestItinerary  *ItineraryOption `json:"best_itinerary"`
	Metadata       Metadata         `json:"metadata"`
	FiltersApplied FiltersApplied   `json:"filters_applied"`
	Warnings       []string         `json:"warnings,omitempty"`
	Message        string           `json:"message"`
	Access         *AccessNotice    `json:"access,omitempty"`
}

// AllOptions returns every option in result order: groups follow the
// requested search types, options keep their in-group order.
func (r *SearchResult) AllOptions() []ItineraryOption {
	var out []ItineraryOption
	for _, st := range r.FiltersApplied.SearchTypes {
		out = append(out, r.OptionsOf(st)...)
	}
	return out
}

// OptionsOf returns the options found for one search type.
func (r *SearchResult) OptionsOf(st SearchType) []ItineraryOption {
	var out []ItineraryOption
	switch st {
	case SearchNormal:
		if r.Normal == nil {
			return nil
		}
		out = append(out, r.Normal.Options...)
		for _, m := range r.Normal.MonthlyOptions {
			out = append(out, m.Options...)
		}
	case SearchRanges:
		if r.Ranges != nil {
			out = append(out, r.Ranges.Results...)
		}
	case SearchFixedDates:
		if r.FixedDates != nil {
			out = append(out, r.FixedDates.Results...)
		}
	}
	return out
}

// Clone returns a deep copy so cached results are never shared with callers.
func (r *SearchResult) Clone() *SearchResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Normal != nil {
		n := NormalResults{Options: cloneOptions(r.Normal.Options)}
		for _, m := range r.Normal.MonthlyOptions {
			n.MonthlyOptions = append(n.MonthlyOptions, MonthlyOptions{Month: m.Month, Options: cloneOptions(m.Options)})
		}
		c.Normal = &n
	}
	if r.Ranges != nil {
		c.Ranges = &OptionList{Results: cloneOptions(r.Ranges.Results)}
	}
	if r.FixedDates != nil {
		c.FixedDates = &OptionList{Results: cloneOptions(r.FixedDates.Results)}
	}
	if r.BestItinerary != nil {
		b := r.BestItinerary.Clone()
		c.BestItinerary = &b
	}
	if r.Metadata.BestCostFound != nil {
		v := *r.Metadata.BestCostFound
		c.Metadata.BestCostFound = &v
	}
	c.FiltersApplied.SearchTypes = append([]SearchType(nil), r.FiltersApplied.SearchTypes...)
	c.Warnings = append([]string(nil), r.Warnings...)
	if r.Access != nil {
		a := *r.Access
		a.Benefits = append([]string(nil), r.Access.Benefits...)
		c.Access = &a
	}
	return &c
}

// Clone deep-copies an option.
func (o ItineraryOption) Clone() ItineraryOption {
	c := o
	c.Destinations = make([]DestinationResult, len(o.Destinations))
	for i, d := range o.Destinations {
		d.Assignments = append([]HotelAssignment(nil), d.Assignments...)
		if d.AreaID != nil {
			v := *d.AreaID
			d.AreaID = &v
		}
		c.Destinations[i] = d
	}
	return c
}

func cloneOptions(in []ItineraryOption) []ItineraryOption {
	if in == nil {
		return nil
	}
	out := make([]ItineraryOption, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

// TypeStats summarizes option costs for one search type.
type TypeStats struct {
	Count   int   `json:"count"`
	MinCost Money `json:"min_cost"`
	MaxCost Money `json:"max_cost"`
	AvgCost Money `json:"avg_cost"`
}

// BestSummary identifies the overall cheapest option.
type BestSummary struct {
	SearchType SearchType `json:"search_type"`
	Label      string     `json:"label"`
	TotalCost  Money      `json:"total_cost"`
	Currency   string     `json:"currency"`
	StartDate  Date       `json:"start_date"`
	EndDate    Date       `json:"end_date"`
}

// Comparison is the cross-mode analysis returned by compare.
type Comparison struct {
	SearchTypesExecuted []SearchType             `json:"search_types_executed"`
	CostComparison      map[SearchType]TypeStats `json:"cost_comparison"`
	BestOverall         *BestSummary             `json:"best_overall"`
	Recommendations     []string                 `json:"recommendations"`
}

// CompareResult wraps an all-modes optimization with its analysis.
type CompareResult struct {
	Success  bool          `json:"success"`
	Result   *SearchResult `json:"optimization_result"`
	Analysis Comparison    `json:"comparison_analysis"`
	Message  string        `json:"message"`
}
