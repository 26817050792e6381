package engine

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/model"
)

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

// stubSource returns a fixed snapshot.
type stubSource struct {
	raws []map[string]any
}

func (s *stubSource) FetchDeals(ctx context.Context, limit int) ([]map[string]any, error) {
	return s.raws, nil
}

// stubGenerator fails for the configured deal IDs and succeeds otherwise.
type stubGenerator struct {
	failFor map[string]bool
}

func (g *stubGenerator) Explain(ctx context.Context, deal model.DealRecord, assessment model.RiskAssessment) (*model.Explanation, error) {
	if g.failFor[deal.ID] {
		return nil, &model.GenerationError{DealID: deal.ID, Err: fmt.Errorf("upstream unavailable")}
	}
	return &model.Explanation{DealID: deal.ID, Causes: "stalled", Action: "call the client"}, nil
}

func (g *stubGenerator) DraftFollowUp(ctx context.Context, deal model.DealRecord, causes string) (string, error) {
	return "follow-up", nil
}

func testConfig() *config.Config {
	return &config.Config{
		CRM: config.CRMConfig{MaxDeals: 100},
		SLA: config.SLAConfig{
			DefaultStageDays:        5,
			InactivityThresholdDays: 7,
		},
		Scoring: config.ScoringConfig{
			StageOverdueMax: 40,
			InactivityMax:   30,
			RedThreshold:    70,
			YellowThreshold: 40,
		},
		Concurrency: config.ConcurrencyConfig{Workers: 2},
	}
}

// riskyRaw builds a deal 10 days into a stage with a 5-day SLA.
func riskyRaw(id string) map[string]any {
	return map[string]any{
		"id":               id,
		"stage":            "negotiation",
		"amount":           1000.0,
		"created_at":       now.AddDate(0, 0, -30).Format(time.RFC3339),
		"last_activity_at": now.AddDate(0, 0, -1).Format(time.RFC3339),
		"stage_entered_at": now.AddDate(0, 0, -10).Format(time.RFC3339),
	}
}

func TestRun_OneFailedExplanationDegradesOnlyThatDeal(t *testing.T) {
	raws := make([]map[string]any, 0, 5)
	for i := 1; i <= 5; i++ {
		raws = append(raws, riskyRaw("D"+strconv.Itoa(i)))
	}

	eng := New(testConfig(), &stubSource{raws: raws}, &stubGenerator{failFor: map[string]bool{"D3": true}})
	top, err := eng.Run(context.Background(), RunOptions{Now: now})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(top.Deals) != 5 {
		t.Fatalf("deals = %d, want 5", len(top.Deals))
	}
	withExp := 0
	for _, rd := range top.Deals {
		if rd.Explanation != nil {
			withExp++
		} else if rd.Deal.ID != "D3" {
			t.Errorf("deal %s unexpectedly lost its explanation", rd.Deal.ID)
		}
	}
	if withExp != 4 {
		t.Errorf("explanations = %d, want 4", withExp)
	}
	if top.Summary.Degraded != 1 {
		t.Errorf("Degraded = %d, want 1", top.Summary.Degraded)
	}
}

func TestRun_GreenDealsGetNoExplanationCall(t *testing.T) {
	healthy := riskyRaw("H1")
	healthy["stage_entered_at"] = now.AddDate(0, 0, -1).Format(time.RFC3339)

	gen := &countingGenerator{}
	eng := New(testConfig(), &stubSource{raws: []map[string]any{healthy}}, gen)
	top, err := eng.Run(context.Background(), RunOptions{Now: now})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times for a green-only snapshot", gen.calls)
	}
	if len(top.Deals) != 1 || top.Deals[0].Assessment.Tier != model.TierGreen {
		t.Errorf("TopDeals = %+v", top.Deals)
	}
}

func TestRun_SkippedDealsCounted(t *testing.T) {
	bad := riskyRaw("")
	delete(bad, "id")

	eng := New(testConfig(), &stubSource{raws: []map[string]any{riskyRaw("D1"), bad}}, &stubGenerator{})
	top, err := eng.Run(context.Background(), RunOptions{Now: now})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if top.Summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", top.Summary.Skipped)
	}
	if top.Summary.Fetched != 2 || top.Summary.Scored != 1 {
		t.Errorf("Summary = %+v", top.Summary)
	}
}

func TestRun_CancelledContextKeepsScores(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(testConfig(), &stubSource{raws: []map[string]any{riskyRaw("D1")}}, &stubGenerator{})
	top, err := eng.Run(ctx, RunOptions{Now: now})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Partial results are a valid terminal state: score present, no
	// explanation.
	if len(top.Deals) != 1 {
		t.Fatalf("deals = %d, want 1", len(top.Deals))
	}
	if top.Deals[0].Explanation != nil {
		t.Error("explanation generated after cancellation")
	}
	// The abandoned explanation must still be reported as a degradation, or
	// the report would look complete when it is not.
	if top.Summary.Degraded != 1 {
		t.Errorf("Degraded = %d, want 1", top.Summary.Degraded)
	}
}

func TestRun_UnsetWorkerBoundStillExplains(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency.Workers = 0

	eng := New(cfg, &stubSource{raws: []map[string]any{riskyRaw("D1")}}, &stubGenerator{})
	top, err := eng.Run(context.Background(), RunOptions{Now: now})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(top.Deals) != 1 || top.Deals[0].Explanation == nil {
		t.Fatalf("TopDeals = %+v, want one explained deal", top.Deals)
	}
}

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Explain(ctx context.Context, deal model.DealRecord, assessment model.RiskAssessment) (*model.Explanation, error) {
	g.calls++
	return &model.Explanation{DealID: deal.ID}, nil
}

func (g *countingGenerator) DraftFollowUp(ctx context.Context, deal model.DealRecord, causes string) (string, error) {
	g.calls++
	return "", nil
}
