package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tripnav/internal/metrics"
	"tripnav/internal/model"
)

// Optimizer produces itinerary search results. The engine and the caching
// decorator in internal/cache both implement it.
type Optimizer interface {
	Optimize(ctx context.Context, req model.OptimizeRequest) (*model.SearchResult, error)
}

// Config tunes the engine.
type Config struct {
	Defaults
	// AllowPartial returns what was found when the time budget runs out
	// instead of failing with ErrOptimizationTimeout. Requests may opt in too.
	AllowPartial bool
	// CatalogConcurrency bounds concurrent catalog calls per request.
	CatalogConcurrency int
	// CandidateConcurrency bounds concurrently evaluated windows per search type.
	CandidateConcurrency int
}

// Engine searches candidate windows for the cheapest itineraries.
type Engine struct {
	catalog PriceCatalog
	cfg     Config
	log     *slog.Logger
}

// NewEngine wires an engine to its price catalog.
func NewEngine(catalog PriceCatalog, cfg Config, log *slog.Logger) *Engine {
	cfg.Defaults = cfg.Defaults.withFallbacks()
	if cfg.CatalogConcurrency <= 0 {
		cfg.CatalogConcurrency = 8
	}
	if cfg.CandidateConcurrency <= 0 {
		cfg.CandidateConcurrency = 4
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{catalog: catalog, cfg: cfg, log: log}
}

// Defaults returns the request defaults the engine applies.
func (e *Engine) Defaults() Defaults { return e.cfg.Defaults }

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Progress reports the options found for one search type as soon as the
// type has been evaluated.
type Progress struct {
	SearchType model.SearchType        `json:"search_type"`
	Evaluated  int                     `json:"evaluated"`
	Options    []model.ItineraryOption `json:"options"`
	// Replayed marks progress rebuilt from a finished result, when the
	// caller was served from the cache or by another caller's run.
	Replayed bool `json:"replayed,omitempty"`
}

// ReplayProgress rebuilds one progress report per search type from res.
// Types a partial result never reached are left out.
func ReplayProgress(res *model.SearchResult) []Progress {
	var out []Progress
	for _, st := range res.FiltersApplied.SearchTypes {
		opts := res.OptionsOf(st)
		if res.Metadata.Partial && len(opts) == 0 {
			continue
		}
		out = append(out, Progress{SearchType: st, Evaluated: len(opts), Options: opts, Replayed: true})
	}
	return out
}

type progressKey struct{}

// WithProgress attaches fn to ctx; Optimize calls it once per search type,
// in evaluation order, from the calling goroutine.
func WithProgress(ctx context.Context, fn func(Progress)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFrom(ctx context.Context) func(Progress) {
	fn, _ := ctx.Value(progressKey{}).(func(Progress))
	return fn
}

// Optimize validates req and evaluates every requested search type.
// Windows without availability are dropped; an empty result is still a success.
func (e *Engine) Optimize(ctx context.Context, req model.OptimizeRequest) (*model.SearchResult, error) {
	started := time.Now()
	plan, err := Normalize(req, e.cfg.Defaults)
	if err != nil {
		metrics.Optimizations.WithLabelValues("invalid").Inc()
		return nil, err
	}
	res, err := e.run(ctx, plan)
	elapsed := time.Since(started)
	metrics.OptimizationDuration.Observe(elapsed.Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrOptimizationTimeout) {
			outcome = "timeout"
		}
		metrics.Optimizations.WithLabelValues(outcome).Inc()
		e.log.Warn("optimization failed", "hash", shortHash(plan.Fingerprint()), "err", err, "duration", elapsed)
		return nil, err
	}
	res.Metadata.ProcessingTimeMs = elapsed.Milliseconds()
	outcome := "ok"
	switch {
	case res.Metadata.Partial:
		outcome = "partial"
	case res.BestItinerary == nil:
		outcome = "empty"
	}
	metrics.Optimizations.WithLabelValues(outcome).Inc()
	e.log.Info("optimization finished",
		"hash", shortHash(res.RequestHash),
		"search_types", plan.SearchTypes,
		"options", res.Metadata.AlternativesGenerated,
		"price_queries", res.Metadata.PriceQueries,
		"partial", res.Metadata.Partial,
		"duration", elapsed,
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, plan Plan) (*model.SearchResult, error) {
	tctx, cancel := context.WithTimeoutCause(ctx, plan.Timeout, ErrOptimizationTimeout)
	defer cancel()
	allowPartial := e.cfg.AllowPartial || plan.Request.AllowPartial
	cat := newRequestCatalog(tctx, e.catalog, plan.Request.Currency, e.cfg.CatalogConcurrency)
	progress := progressFrom(ctx)

	found := map[model.SearchType][]model.ItineraryOption{}
	var all []model.ItineraryOption
	evaluated := 0
	partial := false
	for _, st := range plan.SearchTypes {
		opts, n, err := e.evaluate(tctx, cat, st, plan)
		evaluated += n
		if err != nil {
			if ctx.Err() != nil || !errors.Is(context.Cause(tctx), ErrOptimizationTimeout) {
				return nil, err
			}
			if !allowPartial {
				return nil, fmt.Errorf("%w after %s", ErrOptimizationTimeout, plan.Timeout)
			}
			partial = true
		}
		found[st] = opts
		all = append(all, opts...)
		if progress != nil {
			progress(Progress{SearchType: st, Evaluated: n, Options: opts})
		}
		if partial {
			break
		}
	}

	res := &model.SearchResult{
		Success:     true,
		RequestHash: plan.Fingerprint(),
		FiltersApplied: model.FiltersApplied{
			SearchTypes: slices.Clone(plan.SearchTypes),
			Custom:      plan.Request.Custom,
			Currency:    plan.Request.Currency,
		},
		Warnings: plan.Warnings,
	}
	for _, st := range plan.SearchTypes {
		switch st {
		case model.SearchNormal:
			res.Normal = groupByMonth(found[st])
		case model.SearchRanges:
			res.Ranges = &model.OptionList{Results: rank(found[st], plan.Request.TopK)}
		case model.SearchFixedDates:
			res.FixedDates = &model.OptionList{Results: rank(found[st], plan.Request.TopK)}
		}
	}
	if best, ok := bestOf(all); ok {
		res.BestItinerary = &best
		cost := best.TotalCost
		res.Metadata.BestCostFound = &cost
	}
	queries, lodgings := cat.stats()
	res.Metadata.AlternativesGenerated = len(all)
	res.Metadata.CandidatesEvaluated = evaluated
	res.Metadata.PriceQueries = queries
	res.Metadata.LodgingsSeen = lodgings
	res.Metadata.Partial = partial
	if shown := len(res.AllOptions()); shown > 0 {
		res.Message = fmt.Sprintf("Found %d itinerary options across %d search types", shown, len(plan.SearchTypes))
	} else {
		res.Message = "No feasible itinerary found for the requested destinations and dates"
	}
	return res, nil
}

// evaluate assembles every window of one search type. Results keep window
// generation order regardless of completion order. It returns the options
// found and the number of windows fully evaluated.
func (e *Engine) evaluate(ctx context.Context, cat *requestCatalog, st model.SearchType, plan Plan) ([]model.ItineraryOption, int, error) {
	windows := slices.Collect(Windows(st, plan))
	slots := make([]*model.ItineraryOption, len(windows))
	var evaluated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.CandidateConcurrency)
	for i, w := range windows {
		g.Go(func() error {
			o, err := assemble(gctx, cat, w, plan.Request.Destinations)
			switch {
			case err == nil:
				slots[i] = &o
				metrics.Candidates.WithLabelValues(string(st), "feasible").Inc()
			case errors.Is(err, ErrNoAvailability):
				metrics.Candidates.WithLabelValues(string(st), "unavailable").Inc()
				e.log.Debug("candidate dropped", "search_type", st, "label", w.Label, "err", err)
			default:
				return err
			}
			evaluated.Add(1)
			return nil
		})
	}
	err := g.Wait()
	out := make([]model.ItineraryOption, 0, len(windows))
	for _, o := range slots {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out, int(evaluated.Load()), err
}

// compareOptions orders by cost, then start date, then fewer lodgings.
func compareOptions(a, b model.ItineraryOption) int {
	switch {
	case a.Better(b):
		return -1
	case b.Better(a):
		return 1
	}
	return 0
}

// rank sorts options best first and keeps at most topK. Equal options keep
// generation order.
func rank(opts []model.ItineraryOption, topK int) []model.ItineraryOption {
	out := slices.Clone(opts)
	if out == nil {
		out = []model.ItineraryOption{}
	}
	slices.SortStableFunc(out, compareOptions)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func bestOf(opts []model.ItineraryOption) (model.ItineraryOption, bool) {
	if len(opts) == 0 {
		return model.ItineraryOption{}, false
	}
	best := opts[0]
	for _, o := range opts[1:] {
		if o.Better(best) {
			best = o
		}
	}
	return best.Clone(), true
}

// groupByMonth keeps normal-mode options in generation order, grouped by the
// month they start in when they span more than one month.
func groupByMonth(opts []model.ItineraryOption) *model.NormalResults {
	months := []string{}
	byMonth := map[string][]model.ItineraryOption{}
	for _, o := range opts {
		m := o.StartDate.MonthLabel()
		if _, ok := byMonth[m]; !ok {
			months = append(months, m)
		}
		byMonth[m] = append(byMonth[m], o)
	}
	if len(months) <= 1 {
		return &model.NormalResults{Options: append([]model.ItineraryOption{}, opts...)}
	}
	res := &model.NormalResults{Options: []model.ItineraryOption{}}
	for _, m := range months {
		res.MonthlyOptions = append(res.MonthlyOptions, model.MonthlyOptions{Month: m, Options: byMonth[m]})
	}
	return res
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
