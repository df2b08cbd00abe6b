package opt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"tripnav/internal/model"
)

type canonicalDestination struct {
	DestinationID int64  `json:"destination_id"`
	AreaID        *int64 `json:"area_id"`
	Nights        int    `json:"nights"`
	Order         int    `json:"order"`
}

type canonicalRequest struct {
	Custom       bool                   `json:"custom"`
	SearchTypes  []string               `json:"search_types"`
	Destinations []canonicalDestination `json:"destinations"`
	Start        string                 `json:"start"`
	End          string                 `json:"end"`
	Ranges       []string               `json:"ranges"`
	FixedDates   []string               `json:"fixed_dates"`
	Currency     string                 `json:"currency"`
	TopK         int                    `json:"top_k"`
}

// Fingerprint is the cache key of the plan: a sha256 over a canonical
// encoding of everything that influences the result. Processing options
// (use_cache, time budget, allow_partial) are left out.
func (p Plan) Fingerprint() string {
	r := p.Request
	c := canonicalRequest{
		Custom:       r.Custom,
		Destinations: make([]canonicalDestination, 0, len(r.Destinations)),
		Start:        r.GlobalDateRange.Start.String(),
		End:          r.GlobalDateRange.End.String(),
		Ranges:       []string{},
		FixedDates:   []string{},
		Currency:     strings.ToUpper(r.Currency),
		TopK:         r.TopK,
	}
	for _, t := range p.SearchTypes {
		c.SearchTypes = append(c.SearchTypes, string(t))
	}
	slices.Sort(c.SearchTypes)
	for i, d := range r.Destinations {
		c.Destinations = append(c.Destinations, canonicalDestination{
			DestinationID: d.DestinationID,
			AreaID:        d.AreaID,
			Nights:        d.Nights,
			Order:         d.Position(i),
		})
	}
	slices.SortStableFunc(c.Destinations, func(a, b canonicalDestination) int { return a.Order - b.Order })
	if slices.Contains(p.SearchTypes, model.SearchRanges) {
		for _, rg := range p.Ranges {
			c.Ranges = append(c.Ranges, rg.Start.String()+"/"+rg.End.String())
		}
		slices.Sort(c.Ranges)
		c.Ranges = slices.Compact(c.Ranges)
	}
	if slices.Contains(p.SearchTypes, model.SearchFixedDates) {
		for _, d := range r.FixedDates {
			c.FixedDates = append(c.FixedDates, d.String())
		}
		slices.Sort(c.FixedDates)
		c.FixedDates = slices.Compact(c.FixedDates)
	}
	b, _ := json.Marshal(c)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Fingerprint normalizes req and returns its cache key.
func Fingerprint(req model.OptimizeRequest, d Defaults) (string, error) {
	p, err := Normalize(req, d)
	if err != nil {
		return "", err
	}
	return p.Fingerprint(), nil
}
