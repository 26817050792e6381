// Package risk computes the deterministic per-deal risk assessment. Scoring
// is a pure function of the deal snapshot, the SLA/scoring configuration and
// the supplied clock value; it performs no I/O.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/model"
)

// Signal names emitted by the scorer.
const (
	SignalStageOverdue  = "stage-overdue"
	SignalNoActivity    = "no-activity"
	SignalNegativeReply = "negative-reply"
	SignalLowAmount     = "low-amount-high-effort"
	SignalOwnerOverload = "owner-overload"
)

// Score assesses one deal against the SLA and scoring configuration. The same
// inputs always yield the same assessment; a deal with no triggered signals
// scores 0 and is green. Missing optional fields are neutral, never an error.
func Score(deal model.DealRecord, sla config.SLAConfig, sc config.ScoringConfig, now time.Time) model.RiskAssessment {
	var signals []model.SignalContribution
	total := 0.0

	stageAge := deal.StageAgeDays(now)

	// 1. Stage overdue: proportional to the overrun ratio, capped so one
	// factor cannot alone saturate the score.
	if deal.StageEnteredAt != nil {
		maxDays := float64(sla.MaxDaysForStage(deal.Stage))
		if maxDays > 0 && stageAge > maxDays {
			pts := capped(sc.StageOverdueMax*(stageAge-maxDays)/maxDays, sc.StageOverdueMax)
			signals = append(signals, model.SignalContribution{
				Name:   SignalStageOverdue,
				Points: pts,
				Detail: fmt.Sprintf("%.0f days in stage %q (SLA %.0f)", stageAge, deal.Stage, maxDays),
			})
			total += pts
		}
	}

	// 2. Inactivity: a deal with no recorded activity at all counts as
	// maximally inactive, not as fresh.
	threshold := float64(sla.InactivityThresholdDays)
	if deal.LastActivityAt == nil {
		signals = append(signals, model.SignalContribution{
			Name:   SignalNoActivity,
			Points: sc.InactivityMax,
			Detail: "no activity ever recorded",
		})
		total += sc.InactivityMax
	} else if threshold > 0 {
		idle := now.Sub(*deal.LastActivityAt).Hours() / 24
		if idle > threshold {
			pts := capped(sc.InactivityMax*(idle-threshold)/threshold, sc.InactivityMax)
			signals = append(signals, model.SignalContribution{
				Name:   SignalNoActivity,
				Points: pts,
				Detail: fmt.Sprintf("no activity for %.0f days (threshold %.0f)", idle, threshold),
			})
			total += pts
		}
	}

	// 3. Negative reply: trigger phrases in the client's last message.
	if triggers := Triggers(deal.LastMessage); len(triggers) > 0 {
		signals = append(signals, model.SignalContribution{
			Name:   SignalNegativeReply,
			Points: sc.NegativeReplyPoints,
			Detail: "trigger phrases: " + strings.Join(triggers, ", "),
		})
		total += sc.NegativeReplyPoints
	}

	// 4. Low amount, high effort: a small deal that has been worked for a
	// long time is disproportionate effort.
	if sc.LowAmountFloor > 0 && deal.Amount > 0 && deal.Amount < sc.LowAmountFloor && !deal.CreatedAt.IsZero() {
		pipelineAge := now.Sub(deal.CreatedAt).Hours() / 24
		if pipelineAge > float64(sc.EffortDays) {
			signals = append(signals, model.SignalContribution{
				Name:   SignalLowAmount,
				Points: sc.LowAmountPoints,
				Detail: fmt.Sprintf("amount %.0f below floor %.0f after %.0f days", deal.Amount, sc.LowAmountFloor, pipelineAge),
			})
			total += sc.LowAmountPoints
		}
	}

	// 5. Owner overload: the owner carries more open deals than they can
	// realistically work.
	if sc.MaxOwnerOpenDeals > 0 && deal.OwnerOpenDeals > sc.MaxOwnerOpenDeals {
		signals = append(signals, model.SignalContribution{
			Name:   SignalOwnerOverload,
			Points: sc.OwnerOverloadPoints,
			Detail: fmt.Sprintf("owner holds %d open deals (limit %d)", deal.OwnerOpenDeals, sc.MaxOwnerOpenDeals),
		})
		total += sc.OwnerOverloadPoints
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return model.RiskAssessment{
		DealID:       deal.ID,
		Score:        total,
		Tier:         TierFor(total, sc),
		Signals:      signals,
		StageAgeDays: stageAge,
	}
}

// TierFor maps a score to its tier. The configured thresholds partition
// [0,100]: score >= red is red, score >= yellow is yellow, below is green.
func TierFor(score float64, sc config.ScoringConfig) model.Tier {
	switch {
	case score >= sc.RedThreshold:
		return model.TierRed
	case score >= sc.YellowThreshold:
		return model.TierYellow
	default:
		return model.TierGreen
	}
}

func capped(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
