package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/access"
	"tripnav/internal/auth"
	"tripnav/internal/cache"
	"tripnav/internal/metrics"
	"tripnav/internal/model"
	"tripnav/internal/opt"
	"tripnav/internal/ratelimit"
	"tripnav/internal/store"
)

// seedDecember prices two lodgings at destination 1 for every night of December 2025.
func seedDecember(m *store.Memory) {
	recorded := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	for d := model.MustDate("2025-12-01"); !d.After(model.MustDate("2025-12-31")); d = d.AddDays(1) {
		m.Add(
			store.Quote{DestinationID: 1, LodgingID: "h1", LodgingName: "Harbor Inn", Date: d, Price: 10000, Currency: "USD", Available: true, RecordedAt: recorded},
			store.Quote{DestinationID: 1, LodgingID: "h2", LodgingName: "Pier House", Date: d, Price: 9000, Currency: "USD", Available: true, RecordedAt: recorded},
		)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat := store.NewMemory()
	seedDecember(cat)
	eng := opt.NewEngine(cat, opt.Config{}, nil)
	ms := cache.NewMemoryStore(time.Minute)
	t.Cleanup(ms.Close)
	c := cache.NewOptimizer(eng, ms, time.Hour, eng.Defaults(), nil)
	return &Server{
		Optimizer: c,
		Engine:    eng,
		Cache:     c,
		Catalog:   cat,
		Auth:      auth.New(auth.Config{Mode: "dev"}),
		Now:       func() time.Time { return time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC) },
	}
}

const normalRequest = `{"destinations":[{"destination_id":1,"nights":3}],"global_date_range":{"start":"2025-12-01","end":"2025-12-31"}}`

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthReady(t *testing.T) {
	h := newTestServer(t).Router()
	rr := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"catalog":"ok"`)
}

func TestOptimizeAuthenticatedThenCached(t *testing.T) {
	h := newTestServer(t).Router()

	rr := do(t, h, http.MethodPost, "/v1/itineraries/optimize", "authenticated", normalRequest)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[model.SearchResult](t, rr)
	assert.True(t, first.Success)
	assert.NotEmpty(t, first.RequestHash)
	assert.False(t, first.Metadata.CacheHit)
	require.NotNil(t, first.Normal)
	assert.Len(t, first.Normal.Options, 3)
	require.NotNil(t, first.BestItinerary)
	assert.Equal(t, model.Money(27000), first.BestItinerary.TotalCost)
	assert.Equal(t, "h2", first.BestItinerary.Destinations[0].Assignments[0].LodgingID)
	assert.Nil(t, first.Access)

	rr = do(t, h, http.MethodPost, "/v1/itineraries/optimize", "authenticated", normalRequest)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[model.SearchResult](t, rr)
	assert.True(t, second.Metadata.CacheHit)
	assert.Equal(t, first.RequestHash, second.RequestHash)

	rr = do(t, h, http.MethodGet, "/v1/itineraries/cached/"+first.RequestHash, "authenticated", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cached := decode[model.SearchResult](t, rr)
	assert.True(t, cached.Metadata.CacheHit)
	assert.Equal(t, first.BestItinerary.TotalCost, cached.BestItinerary.TotalCost)

	rr = do(t, h, http.MethodGet, "/v1/itineraries/cached/unknown", "authenticated", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOptimizeAnonymousIsMasked(t *testing.T) {
	h := newTestServer(t).Router()
	rr := do(t, h, http.MethodPost, "/v1/itineraries/optimize", "", normalRequest)
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[model.SearchResult](t, rr)
	all := res.AllOptions()
	require.Len(t, all, 1)
	assert.True(t, all[0].Masked)
	assert.Zero(t, all[0].TotalCost)
	assert.Equal(t, access.MaskedLodging, all[0].Destinations[0].Assignments[0].LodgingID)
	assert.Equal(t, "2025-12-01", all[0].StartDate.String(), "nearest to today")
	assert.Empty(t, res.RequestHash)
	require.NotNil(t, res.Access)
	assert.Equal(t, access.AnonymousMessage, res.Access.Message)
}

func TestOptimizeErrors(t *testing.T) {
	h := newTestServer(t).Router()

	rr := do(t, h, http.MethodPost, "/v1/itineraries/optimize", "admin", `{"destinations":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid JSON", decode[Problem](t, rr).Title)

	rr = do(t, h, http.MethodPost, "/v1/itineraries/optimize", "admin",
		`{"destinations":[{"destination_id":1,"nights":10}],"global_date_range":{"start":"2025-12-01","end":"2025-12-07"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	p := decode[Problem](t, rr)
	assert.Equal(t, "Invalid optimization request", p.Title)
	assert.NotEmpty(t, p.Errors)

	rr = do(t, h, http.MethodPost, "/v1/itineraries/optimize", "admin",
		`{"custom":true,"search_types":["ranges"],"destinations":[{"destination_id":1,"nights":3}],"global_date_range":{"start":"2025-12-01","end":"2025-12-31"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	p = decode[Problem](t, rr)
	assert.Equal(t, "Missing required parameter", p.Title)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "ranges", p.Errors[0].Field)
}

func TestOptimizeNothingFound(t *testing.T) {
	h := newTestServer(t).Router()
	rr := do(t, h, http.MethodPost, "/v1/itineraries/optimize", "authenticated",
		`{"destinations":[{"destination_id":9,"nights":2}],"global_date_range":{"start":"2025-12-01","end":"2025-12-10"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[model.SearchResult](t, rr)
	assert.True(t, res.Success)
	assert.Empty(t, res.AllOptions())
	assert.Nil(t, res.BestItinerary)
	assert.Contains(t, res.Message, "No feasible itinerary")
}

func TestCompare(t *testing.T) {
	h := newTestServer(t).Router()
	rr := do(t, h, http.MethodPost, "/v1/itineraries/compare", "", normalRequest)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/itineraries/compare", "authenticated", normalRequest)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[model.CompareResult](t, rr)
	assert.True(t, res.Success)
	assert.Equal(t, []model.SearchType{model.SearchNormal, model.SearchRanges}, res.Analysis.SearchTypesExecuted)
	require.NotNil(t, res.Analysis.BestOverall)
	assert.Equal(t, model.Money(27000), res.Analysis.BestOverall.TotalCost)
	assert.Equal(t, 3, res.Analysis.CostComparison[model.SearchNormal].Count)
}

func TestInvalidateRequiresAdmin(t *testing.T) {
	h := newTestServer(t).Router()
	rr := do(t, h, http.MethodPost, "/v1/itineraries/optimize", "admin", normalRequest)
	require.Equal(t, http.StatusOK, rr.Code)
	hash := decode[model.SearchResult](t, rr).RequestHash

	rr = do(t, h, http.MethodDelete, "/v1/itineraries/cache/"+hash, "authenticated", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, h, http.MethodDelete, "/v1/itineraries/cache/"+hash, "admin", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodDelete, "/v1/itineraries/cache/"+hash, "admin", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/itineraries/cached/"+hash, "admin", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCacheDisabled(t *testing.T) {
	s := newTestServer(t)
	s.Optimizer, s.Cache = s.Engine, nil
	h := s.Router()
	rr := do(t, h, http.MethodPost, "/v1/itineraries/optimize", "admin", normalRequest)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodGet, "/v1/itineraries/cached/"+decode[model.SearchResult](t, rr).RequestHash, "admin", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOptimizerConfig(t *testing.T) {
	h := newTestServer(t).Router()
	rr := do(t, h, http.MethodGet, "/v1/optimizer/config", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Defaults struct {
			Currency     string `json:"currency"`
			TopK         int    `json:"top_k"`
			TimeoutMs    int64  `json:"max_optimization_time_ms"`
			CacheEnabled bool   `json:"cache_enabled"`
		} `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "USD", body.Defaults.Currency)
	assert.Equal(t, 3, body.Defaults.TopK)
	assert.Equal(t, int64(30000), body.Defaults.TimeoutMs)
	assert.True(t, body.Defaults.CacheEnabled)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.Limiter = ratelimit.New(0.001, 1)
	t.Cleanup(s.Limiter.Close)
	h := s.Router()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/optimizer/config", "", "").Code)
	rr := do(t, h, http.MethodGet, "/v1/optimizer/config", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", "").Code)
}

func TestDocsAndMetrics(t *testing.T) {
	metrics.RegisterDefault()
	h := newTestServer(t).Router()

	rr := do(t, h, http.MethodGet, "/openapi.yaml", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "openapi:"))

	rr = do(t, h, http.MethodGet, "/openapi.json", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/v1/itineraries/optimize")

	do(t, h, http.MethodGet, "/healthz", "", "")
	rr = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tripnav_http_requests_total")

	rr = do(t, h, http.MethodGet, "/v1/debug/build", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"auth_mode":"dev"`)
}

func TestRequestIDAndNotFound(t *testing.T) {
	h := newTestServer(t).Router()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))

	rr = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "ip:10.0.0.1", clientKey(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", clientKey(req))
}
