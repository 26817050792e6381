// Package crm defines the deal source boundary. Sources return raw field
// maps; validation happens downstream in the normalizer.
package crm

import (
	"context"
	"time"
)

// Canonical raw field keys produced by every source.
const (
	FieldID             = "id"
	FieldName           = "name"
	FieldStage          = "stage"
	FieldAmount         = "amount"
	FieldOwner          = "owner"
	FieldCreatedAt      = "created_at"
	FieldLastActivityAt = "last_activity_at"
	FieldStageEnteredAt = "stage_entered_at"
	FieldLastMessage    = "last_message"
)

// Source supplies a snapshot of open deals, already authenticated and
// paginated, as raw field maps keyed by the canonical field names.
type Source interface {
	FetchDeals(ctx context.Context, limit int) ([]map[string]any, error)
}

// TaskCreator is implemented by sources that can push a follow-up task back
// into the CRM. Read-only sources simply do not implement it.
type TaskCreator interface {
	CreateTask(ctx context.Context, dealID string, text string, completeTill time.Time) error
}
