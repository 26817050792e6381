// Package report joins assessments with their explanations and ranks deals
// for the rendering sinks.
package report

import (
	"sort"
	"time"

	"github.com/iWorld-y/deal_radar/internal/logger"
	"github.com/iWorld-y/deal_radar/internal/model"
)

// Aggregate builds the TopDeals view: most severe deals first, truncated to
// topN when topN > 0. An assessment without a matching explanation (green
// tier, or generation failed) is included with a nil explanation. Duplicate
// or unmatched identifiers indicate an upstream contract violation; the
// offending records are logged, excluded and counted.
func Aggregate(deals []model.DealRecord, assessments []model.RiskAssessment, explanations map[string]*model.Explanation, topN int, now time.Time) *model.TopDeals {
	byID := make(map[string]model.DealRecord, len(deals))
	for _, d := range deals {
		byID[d.ID] = d
	}

	excluded := 0
	seen := make(map[string]bool, len(assessments))
	ranked := make([]model.RankedDeal, 0, len(assessments))
	for _, a := range assessments {
		if seen[a.DealID] {
			logger.Log.Warnf("%v", &model.AggregationError{DealID: a.DealID, Reason: "duplicate assessment"})
			excluded++
			continue
		}
		seen[a.DealID] = true

		deal, ok := byID[a.DealID]
		if !ok {
			logger.Log.Warnf("%v", &model.AggregationError{DealID: a.DealID, Reason: "no matching deal record"})
			excluded++
			continue
		}

		ranked = append(ranked, model.RankedDeal{
			Deal:        deal,
			Assessment:  a,
			Explanation: explanations[a.DealID],
		})
	}

	// Score descending, longest-stalled stage first on ties, identifier
	// ascending as the final tie-break so equal inputs sort identically.
	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := ranked[i].Assessment, ranked[j].Assessment
		if ai.Score != aj.Score {
			return ai.Score > aj.Score
		}
		if ai.StageAgeDays != aj.StageAgeDays {
			return ai.StageAgeDays > aj.StageAgeDays
		}
		return ai.DealID < aj.DealID
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	return &model.TopDeals{
		GeneratedAt: now,
		Deals:       ranked,
		Summary:     model.RunSummary{Excluded: excluded},
	}
}
