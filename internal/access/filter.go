// Package access restricts what callers of each tier see of a search result.
package access

import (
	"tripnav/internal/model"
)

const (
	AnonymousMessage = "Login to unlock multiple itinerary options and exact pricing"
	MaskedLodging    = "hidden"
)

var anonymousBenefits = []string{"3 itinerary options", "Exact pricing", "Hotel booking access"}

// Filter returns the view of res allowed for tier. Authenticated and admin
// callers get res unchanged. Anonymous callers get a copy holding only the
// option starting closest to today, with lodging ids and prices masked.
func Filter(res *model.SearchResult, tier model.Tier, today model.Date) *model.SearchResult {
	if res == nil || tier == model.TierAuthenticated || tier == model.TierAdmin {
		return res
	}
	out := res.Clone()
	keep, ok := nearest(out.AllOptions(), today)

	out.RequestHash = ""
	out.Metadata.BestCostFound = nil
	out.Metadata.ProcessingTimeMs = 0
	out.Metadata.AlternativesGenerated = 0
	out.BestItinerary = nil
	out.Access = &model.AccessNotice{
		Message:  AnonymousMessage,
		Benefits: append([]string(nil), anonymousBenefits...),
	}
	if out.Normal != nil {
		out.Normal = &model.NormalResults{Options: []model.ItineraryOption{}}
	}
	if out.Ranges != nil {
		out.Ranges = &model.OptionList{Results: []model.ItineraryOption{}}
	}
	if out.FixedDates != nil {
		out.FixedDates = &model.OptionList{Results: []model.ItineraryOption{}}
	}
	if !ok {
		return out
	}
	out.Message = AnonymousMessage

	masked := mask(keep)
	switch masked.SearchType {
	case model.SearchNormal:
		out.Normal = &model.NormalResults{Options: []model.ItineraryOption{masked}}
	case model.SearchRanges:
		out.Ranges = &model.OptionList{Results: []model.ItineraryOption{masked}}
	case model.SearchFixedDates:
		out.FixedDates = &model.OptionList{Results: []model.ItineraryOption{masked}}
	}
	best := masked.Clone()
	out.BestItinerary = &best
	return out
}

// nearest picks the option whose start is closest to today, the earlier
// start on a tie.
func nearest(opts []model.ItineraryOption, today model.Date) (model.ItineraryOption, bool) {
	if len(opts) == 0 {
		return model.ItineraryOption{}, false
	}
	best := opts[0]
	bestDist := distance(best.StartDate, today)
	for _, o := range opts[1:] {
		d := distance(o.StartDate, today)
		if d < bestDist || (d == bestDist && o.StartDate.Before(best.StartDate)) {
			best, bestDist = o, d
		}
	}
	return best, true
}

func distance(a, b model.Date) int {
	d := a.DaysSince(b)
	if d < 0 {
		return -d
	}
	return d
}

func mask(o model.ItineraryOption) model.ItineraryOption {
	o = o.Clone()
	o.Masked = true
	o.TotalCost = 0
	o.AlternativesGenerated = 0
	for i := range o.Destinations {
		d := &o.Destinations[i]
		d.Masked = true
		d.TotalCost = 0
		for j := range d.Assignments {
			a := &d.Assignments[j]
			a.LodgingID = MaskedLodging
			a.Price = 0
			a.Masked = true
		}
	}
	return o
}
