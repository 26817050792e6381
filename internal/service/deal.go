// Package service holds the display-facing use cases over the pipeline:
// refreshing the report, reading the latest one, drafting follow-ups.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deal_radar/internal/crm"
	"github.com/iWorld-y/deal_radar/internal/engine"
	"github.com/iWorld-y/deal_radar/internal/explain"
	"github.com/iWorld-y/deal_radar/internal/model"
)

// DealService serves the latest TopDeals view and user-triggered actions.
// The report is held in memory only and replaced wholesale on refresh.
type DealService struct {
	engine    *engine.Engine
	generator explain.Generator
	source    crm.Source
	topN      int
	log       *log.Helper

	mu     sync.RWMutex
	latest *model.TopDeals
}

// NewDealService wires the service over the engine, generator and source.
func NewDealService(eng *engine.Engine, generator explain.Generator, source crm.Source, topN int, logger log.Logger) *DealService {
	return &DealService{
		engine:    eng,
		generator: generator,
		source:    source,
		topN:      topN,
		log:       log.NewHelper(logger),
	}
}

// Refresh runs the pipeline over a fresh snapshot and stores the result as
// the latest report.
func (s *DealService) Refresh(ctx context.Context) (*model.TopDeals, error) {
	top, err := s.engine.Run(ctx, engine.RunOptions{
		TopN: s.topN,
		Progress: func(status string, progress int) {
			s.log.Debugf("refresh: %s (%d%%)", status, progress)
		},
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = top
	s.mu.Unlock()
	s.log.Infof("report refreshed: %d deals ranked", len(top.Deals))
	return top, nil
}

// Latest returns the most recent report, or nil when no run has completed.
func (s *DealService) Latest() *model.TopDeals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// FollowUp drafts a follow-up message for a deal in the latest report.
func (s *DealService) FollowUp(ctx context.Context, dealID string) (string, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		return "", fmt.Errorf("no report available yet, refresh first")
	}

	for _, rd := range latest.Deals {
		if rd.Deal.ID != dealID {
			continue
		}
		causes := "deal flagged as at risk"
		if rd.Explanation != nil {
			causes = rd.Explanation.Causes
		}
		return s.generator.DraftFollowUp(ctx, rd.Deal, causes)
	}
	return "", fmt.Errorf("deal %s not found in latest report", dealID)
}

// CreateFollowUpTask drafts a follow-up for a deal and pushes it into the CRM
// as a task due tomorrow. Fails when the configured source is read-only.
func (s *DealService) CreateFollowUpTask(ctx context.Context, dealID string) (string, error) {
	tc, ok := s.source.(crm.TaskCreator)
	if !ok {
		return "", fmt.Errorf("the configured deal source cannot create tasks")
	}

	draft, err := s.FollowUp(ctx, dealID)
	if err != nil {
		return "", err
	}
	due := time.Now().Add(24 * time.Hour)
	if err := tc.CreateTask(ctx, dealID, draft, due); err != nil {
		return "", fmt.Errorf("create task for deal %s: %w", dealID, err)
	}
	s.log.Infof("follow-up task created for deal %s, due %s", dealID, due.Format(time.RFC3339))
	return draft, nil
}
