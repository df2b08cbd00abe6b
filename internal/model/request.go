package model

// SearchType selects how candidate trip start dates are generated.
type SearchType string

const (
	SearchNormal     SearchType = "normal"
	SearchRanges     SearchType = "ranges"
	SearchFixedDates SearchType = "fixed_dates"
	SearchAll        SearchType = "all"
)

// Valid reports whether t is one of the known search types.
func (t SearchType) Valid() bool {
	switch t {
	case SearchNormal, SearchRanges, SearchFixedDates, SearchAll:
		return true
	}
	return false
}

// ConcreteSearchTypes lists the modes "all" expands to, in evaluation order.
var ConcreteSearchTypes = []SearchType{SearchNormal, SearchRanges, SearchFixedDates}

// DestinationRequest is one stop of the trip.
// Order is the 0-based position in the trip; when omitted the array index is used.
type DestinationRequest struct {
	DestinationID int64  `json:"destination_id"`
	AreaID        *int64 `json:"area_id,omitempty"`
	Nights        int    `json:"nights"`
	Order         *int   `json:"order,omitempty"`
}

// Position returns the explicit order or fallback when none was given.
func (d DestinationRequest) Position(fallback int) int {
	if d.Order != nil {
		return *d.Order
	}
	return fallback
}

// OptimizeRequest is the caller-facing optimization request.
type OptimizeRequest struct {
	Custom          bool                 `json:"custom"`
	SearchTypes     []SearchType         `json:"search_types,omitempty"`
	Destinations    []DestinationRequest `json:"destinations"`
	GlobalDateRange DateRange            `json:"global_date_range"`
	Ranges          []DateRange          `json:"ranges,omitempty"`
	FixedDates      []Date               `json:"fixed_dates,omitempty"`
	Currency        string               `json:"currency,omitempty"`
	TopK            int                  `json:"top_k,omitempty"`

	// Processing options; they do not take part in the request fingerprint.
	UseCache              *bool `json:"use_cache,omitempty"`
	MaxOptimizationTimeMs int   `json:"max_optimization_time_ms,omitempty"`
	AllowPartial          bool  `json:"allow_partial,omitempty"`
}

// CacheEnabled reports whether cached results may be used (default true).
func (r OptimizeRequest) CacheEnabled() bool {
	return r.UseCache == nil || *r.UseCache
}

// TotalNights sums nights across all destinations.
func (r OptimizeRequest) TotalNights() int {
	n := 0
	for _, d := range r.Destinations {
		n += d.Nights
	}
	return n
}

// PriceQuote is one nightly price offered by a lodging on a date.
type PriceQuote struct {
	LodgingID   string `json:"lodging_id"`
	LodgingName string `json:"lodging_name"`
	Date        Date   `json:"date"`
	Price       Money  `json:"price"`
	Currency    string `json:"currency"`
}

// Tier is the caller's access level.
type Tier string

const (
	TierAnonymous     Tier = "anonymous"
	TierAuthenticated Tier = "authenticated"
	TierAdmin         Tier = "admin"
)

// ParseTier maps a claim or token value to a Tier. Unknown values are anonymous.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierAuthenticated, TierAdmin:
		return Tier(s)
	case "user", "premium":
		return TierAuthenticated
	}
	return TierAnonymous
}
