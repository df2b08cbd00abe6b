package opt

import (
	"fmt"
	"iter"

	"tripnav/internal/model"
)

// Window is one candidate trip start produced for a search mode.
type Window struct {
	SearchType model.SearchType
	Label      string
	Start      model.Date
}

// Windows yields the candidate windows for one concrete search type. The
// sequence is a pure function of its inputs and may be ranged over again.
// Every yielded window fits inside the plan's global range.
func Windows(st model.SearchType, p Plan) iter.Seq[Window] {
	g := p.Request.GlobalDateRange
	nights := p.TotalNights()
	return func(yield func(Window) bool) {
		if nights < 1 || g.Days() < nights {
			return
		}
		switch st {
		case model.SearchNormal:
			normalWindows(g, nights, yield)
		case model.SearchRanges:
			// Overlapping ranges yield each start once, under the first range's label.
			seen := map[string]bool{}
			for i, r := range p.Ranges {
				for off, start := 0, r.Start; !start.AddDays(nights - 1).After(r.End); off, start = off+1, start.AddDays(1) {
					if !g.Fits(start, nights) || seen[start.String()] {
						continue
					}
					seen[start.String()] = true
					if !yield(Window{SearchType: st, Label: fmt.Sprintf("range_%d_day_%d", i+1, off), Start: start}) {
						return
					}
				}
			}
		case model.SearchFixedDates:
			for _, d := range p.Request.FixedDates {
				if !g.Fits(d, nights) {
					continue
				}
				if !yield(Window{SearchType: st, Label: "fixed_" + d.String(), Start: d}) {
					return
				}
			}
		}
	}
}

// normalWindows yields the earliest, middle and latest starts of the range,
// collapsing duplicates when the range leaves little slack.
func normalWindows(g model.DateRange, nights int, yield func(Window) bool) {
	slack := g.Days() - nights
	starts := []struct {
		label string
		start model.Date
	}{
		{"start_month", g.Start},
		{"mid_month", g.Start.AddDays(slack / 2)},
		{"end_month", g.Start.AddDays(slack)},
	}
	var prev model.Date
	for i, s := range starts {
		if i > 0 && s.start.Equal(prev) {
			continue
		}
		prev = s.start
		if !yield(Window{SearchType: model.SearchNormal, Label: s.label, Start: s.start}) {
			return
		}
	}
}
