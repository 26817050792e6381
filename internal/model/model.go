package model

import "time"

// Tier is the coarse risk classification of a deal.
type Tier string

const (
	TierGreen  Tier = "green"
	TierYellow Tier = "yellow"
	TierRed    Tier = "red"
)

// DealRecord is the validated snapshot of one CRM deal. It is created once
// per run by the normalizer and never mutated afterwards.
type DealRecord struct {
	ID             string
	Name           string
	Stage          string
	Amount         float64
	Owner          string
	CreatedAt      time.Time
	LastActivityAt *time.Time // nil means no activity was ever recorded
	StageEnteredAt *time.Time // nil when the CRM does not track stage entry
	LastMessage    string     // most recent client message or note, may be empty
	OwnerOpenDeals int        // open deals held by the same owner in this snapshot
}

// StageAgeDays returns how long the deal has been in its current stage, in
// fractional days. Zero when stage entry is unknown.
func (d DealRecord) StageAgeDays(now time.Time) float64 {
	if d.StageEnteredAt == nil {
		return 0
	}
	age := now.Sub(*d.StageEnteredAt).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

// SignalContribution is one named contributor to the risk score.
type SignalContribution struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
	Detail string  `json:"detail"`
}

// RiskAssessment is the scorer output for one deal. Score is reproducible
// from the DealRecord and the scoring configuration alone.
type RiskAssessment struct {
	DealID       string               `json:"deal_id"`
	Score        float64              `json:"score"` // clamped to [0, 100]
	Tier         Tier                 `json:"tier"`
	Signals      []SignalContribution `json:"signals"`
	StageAgeDays float64              `json:"stage_age_days"`
}

// Explanation is the generated human-readable reading of an assessment.
type Explanation struct {
	DealID string `json:"deal_id"`
	Causes string `json:"causes"`
	Action string `json:"action"`
}

// RankedDeal joins a deal with its assessment and, when one was generated,
// its explanation. Explanation stays nil for green deals and for deals whose
// generation failed.
type RankedDeal struct {
	Deal        DealRecord     `json:"deal"`
	Assessment  RiskAssessment `json:"assessment"`
	Explanation *Explanation   `json:"explanation,omitempty"`
}

// RunSummary counts per-deal degradations of a run so the report can surface
// them instead of silently producing a shorter list.
type RunSummary struct {
	Fetched  int `json:"fetched"`  // raw payloads received from the CRM
	Scored   int `json:"scored"`   // deals that passed normalization and scoring
	Skipped  int `json:"skipped"`  // rejected by the normalizer
	Degraded int `json:"degraded"` // risky deals whose explanation failed
	Excluded int `json:"excluded"` // dropped by the aggregator join
}

// TopDeals is the ordered run result: most severe deals first. Rebuilt on
// every run and read-only once produced.
type TopDeals struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Deals       []RankedDeal `json:"deals"`
	Summary     RunSummary   `json:"summary"`
}
