package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tripnav_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "tripnav_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// Optimizations counts engine runs by outcome (ok, empty, partial, invalid, timeout, error)
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tripnav_optimizations_total", Help: "Itinerary optimizations by outcome."},
		[]string{"outcome"},
	)
	// OptimizationDuration tracks engine wall time in seconds
	OptimizationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "tripnav_optimization_duration_seconds", Help: "Itinerary optimization duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}},
	)
	// Candidates counts evaluated windows by search type and outcome (feasible, unavailable)
	Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tripnav_candidates_total", Help: "Candidate windows evaluated."},
		[]string{"search_type", "outcome"},
	)
	// CacheLookups counts result cache lookups by result
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tripnav_cache_lookups_total", Help: "Result cache lookups (hit, miss, shared, bypass, error)."},
		[]string{"result"},
	)
	// CatalogQueries counts price catalog calls by status
	CatalogQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tripnav_catalog_queries_total", Help: "Price catalog queries."},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Optimizations)
		Registry.MustRegister(OptimizationDuration)
		Registry.MustRegister(Candidates)
		Registry.MustRegister(CacheLookups)
		Registry.MustRegister(CatalogQueries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
