package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/model"
)

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func testSLA() config.SLAConfig {
	return config.SLAConfig{
		StageDays:               map[string]int{"negotiation": 14, "closing": 5},
		DefaultStageDays:        10,
		InactivityThresholdDays: 7,
	}
}

func testScoring() config.ScoringConfig {
	return config.ScoringConfig{
		StageOverdueMax:     40,
		InactivityMax:       30,
		NegativeReplyPoints: 20,
		LowAmountPoints:     15,
		OwnerOverloadPoints: 10,
		LowAmountFloor:      500,
		EffortDays:          21,
		MaxOwnerOpenDeals:   15,
		RedThreshold:        70,
		YellowThreshold:     40,
	}
}

func daysAgo(d float64) *time.Time {
	t := now.Add(-time.Duration(d * 24 * float64(time.Hour)))
	return &t
}

func healthyDeal() model.DealRecord {
	return model.DealRecord{
		ID:             "D1",
		Name:           "Acme renewal",
		Stage:          "negotiation",
		Amount:         5000,
		Owner:          "7",
		CreatedAt:      *daysAgo(10),
		LastActivityAt: daysAgo(2),
		StageEnteredAt: daysAgo(5),
		OwnerOpenDeals: 3,
	}
}

func TestScore_HealthyDealIsGreenZero(t *testing.T) {
	a := Score(healthyDeal(), testSLA(), testScoring(), now)
	if a.Score != 0 {
		t.Errorf("Score = %v, want 0", a.Score)
	}
	if a.Tier != model.TierGreen {
		t.Errorf("Tier = %v, want green", a.Tier)
	}
	if len(a.Signals) != 0 {
		t.Errorf("Signals = %v, want none", a.Signals)
	}
}

func TestScore_StageOverdueScenario(t *testing.T) {
	// Entered "closing" 10 days ago with a 5-day SLA: stage-overdue fires,
	// score is positive and the tier is at least yellow.
	deal := healthyDeal()
	deal.Stage = "closing"
	deal.StageEnteredAt = daysAgo(10)

	a := Score(deal, testSLA(), testScoring(), now)
	if a.Score <= 0 {
		t.Fatalf("Score = %v, want > 0", a.Score)
	}
	if a.Tier == model.TierGreen {
		t.Errorf("Tier = green, want at least yellow")
	}
	found := false
	for _, s := range a.Signals {
		if s.Name == SignalStageOverdue {
			found = true
		}
	}
	if !found {
		t.Errorf("signals = %v, want %s", a.Signals, SignalStageOverdue)
	}
}

func TestScore_MonotoneInStageAge(t *testing.T) {
	prev := -1.0
	for _, age := range []float64{5, 14, 16, 20, 28, 40, 100} {
		deal := healthyDeal()
		deal.StageEnteredAt = daysAgo(age)
		a := Score(deal, testSLA(), testScoring(), now)
		if a.Score < prev {
			t.Errorf("score decreased at stageAge=%v: %v < %v", age, a.Score, prev)
		}
		prev = a.Score
	}
}

func TestScore_MonotoneInInactivity(t *testing.T) {
	prev := -1.0
	for _, idle := range []float64{1, 7, 8, 10, 14, 30, 90} {
		deal := healthyDeal()
		deal.LastActivityAt = daysAgo(idle)
		a := Score(deal, testSLA(), testScoring(), now)
		if a.Score < prev {
			t.Errorf("score decreased at inactivity=%v: %v < %v", idle, a.Score, prev)
		}
		prev = a.Score
	}
}

func TestScore_NoActivityEverIsMaximalInactivity(t *testing.T) {
	deal := healthyDeal()
	deal.LastActivityAt = nil
	a := Score(deal, testSLA(), testScoring(), now)
	if a.Score != testScoring().InactivityMax {
		t.Errorf("Score = %v, want full inactivity weight %v", a.Score, testScoring().InactivityMax)
	}

	// A very long but recorded inactivity must not exceed the "never" case.
	deal.LastActivityAt = daysAgo(365)
	b := Score(deal, testSLA(), testScoring(), now)
	if b.Score > a.Score {
		t.Errorf("recorded inactivity (%v) scored above absent activity (%v)", b.Score, a.Score)
	}
}

func TestScore_Idempotent(t *testing.T) {
	deal := healthyDeal()
	deal.StageEnteredAt = daysAgo(30)
	deal.LastActivityAt = nil
	deal.LastMessage = "this is too expensive, let's circle back later"

	a := Score(deal, testSLA(), testScoring(), now)
	b := Score(deal, testSLA(), testScoring(), now)
	if a.Score != b.Score || a.Tier != b.Tier {
		t.Errorf("not idempotent: %v/%v vs %v/%v", a.Score, a.Tier, b.Score, b.Tier)
	}
	if !reflect.DeepEqual(a.Signals, b.Signals) {
		t.Errorf("signals differ: %v vs %v", a.Signals, b.Signals)
	}
}

func TestScore_ClampedTo100(t *testing.T) {
	deal := healthyDeal()
	deal.Stage = "closing"
	deal.StageEnteredAt = daysAgo(300)
	deal.LastActivityAt = nil
	deal.LastMessage = "not interested, you are too expensive, we went with another vendor"
	deal.Amount = 100
	deal.CreatedAt = *daysAgo(300)
	deal.OwnerOpenDeals = 40

	a := Score(deal, testSLA(), testScoring(), now)
	if a.Score > 100 {
		t.Errorf("Score = %v, want <= 100", a.Score)
	}
	if a.Tier != model.TierRed {
		t.Errorf("Tier = %v, want red", a.Tier)
	}
}

func TestScore_MissingOptionalFieldsNeverFail(t *testing.T) {
	deal := model.DealRecord{ID: "D2", Stage: "negotiation", LastActivityAt: daysAgo(1)}
	a := Score(deal, testSLA(), testScoring(), now)
	if a.DealID != "D2" {
		t.Errorf("DealID = %q", a.DealID)
	}
	// No stage entry, no amount, no owner: all neutral.
	if a.Score != 0 {
		t.Errorf("Score = %v, want 0", a.Score)
	}
}

func TestTierFor_PartitionsRange(t *testing.T) {
	sc := testScoring()
	for s := 0.0; s <= 100; s += 0.5 {
		matches := 0
		if s >= sc.RedThreshold {
			matches++
		}
		if s >= sc.YellowThreshold && s < sc.RedThreshold {
			matches++
		}
		if s < sc.YellowThreshold {
			matches++
		}
		if matches != 1 {
			t.Fatalf("score %v matched %d tiers", s, matches)
		}

		tier := TierFor(s, sc)
		switch {
		case s >= sc.RedThreshold && tier != model.TierRed:
			t.Errorf("TierFor(%v) = %v, want red", s, tier)
		case s >= sc.YellowThreshold && s < sc.RedThreshold && tier != model.TierYellow:
			t.Errorf("TierFor(%v) = %v, want yellow", s, tier)
		case s < sc.YellowThreshold && tier != model.TierGreen:
			t.Errorf("TierFor(%v) = %v, want green", s, tier)
		}
	}
}

func TestTriggers(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"all good, send the contract", nil},
		{"let's circle back next week", []string{"postpone"}},
		{"this is too expensive for us", []string{"price_objection"}},
		{"we went with another vendor", []string{"chose_other"}},
		{"not interested, please cancel", []string{"refusal"}},
		{"too expensive, maybe later", []string{"postpone", "price_objection"}},
	}
	for _, tc := range cases {
		got := Triggers(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Triggers(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
