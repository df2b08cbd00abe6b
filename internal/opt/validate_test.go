package opt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/model"
)

func baseRequest() model.OptimizeRequest {
	return model.OptimizeRequest{
		Destinations:    []model.DestinationRequest{destination(1, 3)},
		GlobalDateRange: dateRange("2025-12-01", "2025-12-31"),
	}
}

func TestNormalizeDefaults(t *testing.T) {
	req := baseRequest()
	req.SearchTypes = []model.SearchType{model.SearchRanges}
	p, err := Normalize(req, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, []model.SearchType{model.SearchNormal}, p.SearchTypes, "custom=false forces normal")
	assert.Equal(t, "USD", p.Request.Currency)
	assert.Equal(t, 3, p.Request.TopK)
	assert.Equal(t, 30*time.Second, p.Timeout)
	assert.Empty(t, p.Warnings)
}

func TestNormalizeOverrides(t *testing.T) {
	req := baseRequest()
	req.Currency = " eur "
	req.TopK = 5
	req.MaxOptimizationTimeMs = 1500
	p, err := Normalize(req, Defaults{Currency: "GBP", TopK: 2, Timeout: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Request.Currency)
	assert.Equal(t, 5, p.Request.TopK)
	assert.Equal(t, 1500*time.Millisecond, p.Timeout)
}

func TestNormalizeSortsDestinationsByOrder(t *testing.T) {
	one, zero := 1, 0
	req := baseRequest()
	req.Destinations = []model.DestinationRequest{
		{DestinationID: 20, Nights: 2, Order: &one},
		{DestinationID: 10, Nights: 2, Order: &zero},
	}
	p, err := Normalize(req, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Request.Destinations[0].DestinationID)
	assert.Equal(t, int64(20), p.Request.Destinations[1].DestinationID)
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*model.OptimizeRequest)
		wantMissing bool
		wantInvalid bool
	}{
		{
			name: "nights exceed span",
			mutate: func(r *model.OptimizeRequest) {
				r.Destinations = []model.DestinationRequest{destination(1, 5), destination(2, 5)}
				r.GlobalDateRange = dateRange("2025-12-01", "2025-12-07")
			},
			wantInvalid: true,
		},
		{
			name: "ranges requested without ranges",
			mutate: func(r *model.OptimizeRequest) {
				r.Custom = true
				r.SearchTypes = []model.SearchType{model.SearchRanges}
			},
			wantMissing: true,
		},
		{
			name: "fixed dates requested without dates",
			mutate: func(r *model.OptimizeRequest) {
				r.Custom = true
				r.SearchTypes = []model.SearchType{model.SearchNormal, model.SearchFixedDates}
			},
			wantMissing: true,
		},
		{
			name:        "custom without search types",
			mutate:      func(r *model.OptimizeRequest) { r.Custom = true },
			wantMissing: true,
		},
		{
			name: "all combined with a named mode",
			mutate: func(r *model.OptimizeRequest) {
				r.Custom = true
				r.SearchTypes = []model.SearchType{model.SearchAll, model.SearchNormal}
			},
			wantInvalid: true,
		},
		{
			name: "unknown search type",
			mutate: func(r *model.OptimizeRequest) {
				r.Custom = true
				r.SearchTypes = []model.SearchType{"cheapest"}
			},
			wantInvalid: true,
		},
		{
			name: "too many destinations",
			mutate: func(r *model.OptimizeRequest) {
				r.Destinations = nil
				for i := range 11 {
					r.Destinations = append(r.Destinations, destination(int64(i+1), 1))
				}
			},
			wantInvalid: true,
		},
		{
			name:        "too many nights",
			mutate:      func(r *model.OptimizeRequest) { r.Destinations = []model.DestinationRequest{destination(1, 31)} },
			wantInvalid: true,
		},
		{
			name:        "no destinations",
			mutate:      func(r *model.OptimizeRequest) { r.Destinations = nil },
			wantInvalid: true,
		},
		{
			name:        "end before start",
			mutate:      func(r *model.OptimizeRequest) { r.GlobalDateRange = dateRange("2025-12-31", "2025-12-01") },
			wantInvalid: true,
		},
		{
			name:        "bad currency",
			mutate:      func(r *model.OptimizeRequest) { r.Currency = "EURO" },
			wantInvalid: true,
		},
		{
			name:        "top_k out of range",
			mutate:      func(r *model.OptimizeRequest) { r.TopK = 11 },
			wantInvalid: true,
		},
		{
			name:        "time budget too large",
			mutate:      func(r *model.OptimizeRequest) { r.MaxOptimizationTimeMs = 600000 },
			wantInvalid: true,
		},
		{
			name: "duplicate order",
			mutate: func(r *model.OptimizeRequest) {
				zero := 0
				r.Destinations = []model.DestinationRequest{
					{DestinationID: 1, Nights: 1, Order: &zero},
					{DestinationID: 2, Nights: 1, Order: &zero},
				}
			},
			wantInvalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)
			_, err := Normalize(req, Defaults{})
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Problems)
			assert.Equal(t, tt.wantMissing, errors.Is(err, ErrMissingParameter))
			assert.Equal(t, tt.wantInvalid, errors.Is(err, ErrValidation))
		})
	}
}

func TestNormalizeAllExpands(t *testing.T) {
	req := baseRequest()
	req.Custom = true
	req.SearchTypes = []model.SearchType{model.SearchAll}
	p, err := Normalize(req, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, []model.SearchType{model.SearchNormal, model.SearchRanges}, p.SearchTypes)
	assert.Len(t, p.Ranges, 3)

	req.FixedDates = []model.Date{model.MustDate("2025-12-20")}
	p, err = Normalize(req, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, model.ConcreteSearchTypes, p.SearchTypes)
}

func TestNormalizeWarnings(t *testing.T) {
	req := baseRequest()
	req.Destinations = []model.DestinationRequest{destination(4, 15), destination(5, 15)}
	p, err := Normalize(req, Defaults{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Very tight date constraints - limited flexibility",
		"Destination 4 has long stay (15 nights)",
		"Destination 5 has long stay (15 nights)",
	}, p.Warnings)
}
