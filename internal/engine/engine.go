// Package engine runs the risk-assessment pipeline over one snapshot of
// deals: normalize, score, explain risky deals, aggregate.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/crm"
	"github.com/iWorld-y/deal_radar/internal/explain"
	"github.com/iWorld-y/deal_radar/internal/logger"
	"github.com/iWorld-y/deal_radar/internal/model"
	"github.com/iWorld-y/deal_radar/internal/normalize"
	"github.com/iWorld-y/deal_radar/internal/report"
	"github.com/iWorld-y/deal_radar/internal/risk"
)

// Engine executes pipeline runs. Safe for concurrent Run calls; each run is
// independent and shares no mutable state.
type Engine struct {
	cfg       *config.Config
	source    crm.Source
	generator explain.Generator
}

// New creates an engine over a deal source and an explanation generator.
func New(cfg *config.Config, source crm.Source, generator explain.Generator) *Engine {
	return &Engine{cfg: cfg, source: source, generator: generator}
}

// NewLimiter builds the LLM rate limiter from the concurrency configuration.
func NewLimiter(cfg config.ConcurrencyConfig) *rate.Limiter {
	limit := rate.Limit(float64(cfg.RPM) / 60.0)
	return rate.NewLimiter(limit, cfg.QPS)
}

// RunOptions control one pipeline run.
type RunOptions struct {
	TopN     int
	Now      time.Time // zero means time.Now(); fixed by tests
	Progress func(status string, progress int)
}

// Run performs one refresh over a fresh snapshot. Per-deal failures degrade
// only that deal; the run fails as a whole only when the snapshot itself
// cannot be fetched or the context is cancelled before scoring finishes.
// Cancellation mid-explanations returns the partial result: scores without
// explanations are a valid terminal state.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.TopDeals, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, int) {}
	}

	progress("fetching deals", 0)
	raws, err := e.source.FetchDeals(ctx, e.cfg.CRM.MaxDeals)
	if err != nil {
		return nil, fmt.Errorf("fetch deals: %w", err)
	}
	logger.Log.Infof("fetched %d raw deals", len(raws))

	progress("normalizing", 10)
	records, rejected := normalize.Batch(raws)
	for _, r := range rejected {
		logger.Log.Warnf("skipping deal: %v (raw id=%v)", r.Err, r.Raw["id"])
	}

	progress("scoring", 20)
	assessments := make([]model.RiskAssessment, 0, len(records))
	var risky []int // indexes into records
	for i, rec := range records {
		a := risk.Score(rec, e.cfg.SLA, e.cfg.Scoring, now)
		assessments = append(assessments, a)
		if a.Tier != model.TierGreen {
			risky = append(risky, i)
		}
	}
	logger.Log.Infof("scored %d deals, %d risky", len(assessments), len(risky))

	// Explanations only for non-green deals, concurrently but bounded so the
	// model endpoint is not overwhelmed. Completion order does not matter;
	// the aggregator sort decides the output order.
	progress("explaining risky deals", 30)
	explanations := make(map[string]*model.Explanation, len(risky))
	var mu sync.Mutex
	var wg sync.WaitGroup
	workers := e.cfg.Concurrency.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	done := 0
	for _, idx := range risky {
		if ctx.Err() != nil {
			// Caller aborted: abandon remaining calls, keep what we have.
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rec model.DealRecord, a model.RiskAssessment) {
			defer wg.Done()
			defer func() { <-sem }()

			exp, err := e.generator.Explain(ctx, rec, a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Log.Errorf("explanation failed for deal %s: %v", rec.ID, err)
			} else {
				explanations[rec.ID] = exp
			}
			done++
			progress(fmt.Sprintf("explained %d/%d risky deals", done, len(risky)), 30+done*60/max(len(risky), 1))
		}(records[idx], assessments[idx])
	}
	wg.Wait()

	// Every risky deal without an explanation degrades the run, whether the
	// call failed or was abandoned on cancellation. The report must say so.
	degraded := 0
	for _, idx := range risky {
		if explanations[records[idx].ID] == nil {
			degraded++
		}
	}

	progress("aggregating", 95)
	top := report.Aggregate(records, assessments, explanations, opts.TopN, now)
	top.Summary.Fetched = len(raws)
	top.Summary.Scored = len(records)
	top.Summary.Skipped = len(rejected)
	top.Summary.Degraded = degraded

	if top.Summary.Skipped > 0 || top.Summary.Degraded > 0 || top.Summary.Excluded > 0 {
		logger.Log.Warnf("run degraded: %d skipped, %d without explanation, %d excluded",
			top.Summary.Skipped, top.Summary.Degraded, top.Summary.Excluded)
	}

	progress("completed", 100)
	return top, nil
}
