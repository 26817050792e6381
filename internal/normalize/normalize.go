// Package normalize converts raw CRM field maps into validated DealRecords.
// Downstream components only ever see the validated shape.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iWorld-y/deal_radar/internal/model"
)

// Rejection pairs a raw payload with the reason it was dropped.
type Rejection struct {
	Raw map[string]any
	Err error
}

// Deal validates and converts one raw CRM payload. A missing identifier,
// missing stage or unparsable amount fails with a ValidationError; absent
// optional fields are kept absent, never defaulted to the epoch or to now.
func Deal(raw map[string]any) (model.DealRecord, error) {
	var rec model.DealRecord

	id, ok := stringField(raw, "id")
	if !ok || id == "" {
		return rec, &model.ValidationError{Field: "id", Reason: "missing"}
	}
	stage, ok := stringField(raw, "stage")
	if !ok || stage == "" {
		return rec, &model.ValidationError{Field: "stage", Reason: "missing"}
	}

	amount := 0.0
	if v, present := raw["amount"]; present && v != nil {
		f, err := floatValue(v)
		if err != nil {
			return rec, &model.ValidationError{Field: "amount", Reason: err.Error()}
		}
		if f < 0 {
			return rec, &model.ValidationError{Field: "amount", Reason: "negative"}
		}
		amount = f
	}

	createdAt, err := timeField(raw, "created_at")
	if err != nil {
		return rec, &model.ValidationError{Field: "created_at", Reason: err.Error()}
	}

	lastActivity, err := optionalTimeField(raw, "last_activity_at")
	if err != nil {
		return rec, &model.ValidationError{Field: "last_activity_at", Reason: err.Error()}
	}
	stageEntered, err := optionalTimeField(raw, "stage_entered_at")
	if err != nil {
		return rec, &model.ValidationError{Field: "stage_entered_at", Reason: err.Error()}
	}

	name, _ := stringField(raw, "name")
	owner, _ := stringField(raw, "owner")
	lastMessage, _ := stringField(raw, "last_message")

	rec = model.DealRecord{
		ID:             id,
		Name:           name,
		Stage:          stage,
		Amount:         amount,
		Owner:          owner,
		CreatedAt:      createdAt,
		LastActivityAt: lastActivity,
		StageEnteredAt: stageEntered,
		LastMessage:    lastMessage,
	}
	return rec, nil
}

// Batch normalizes a snapshot of raw payloads, collecting rejections instead
// of aborting, and annotates each record with its owner's open-deal count.
func Batch(raws []map[string]any) ([]model.DealRecord, []Rejection) {
	records := make([]model.DealRecord, 0, len(raws))
	var rejected []Rejection

	ownerLoad := make(map[string]int)
	for _, raw := range raws {
		rec, err := Deal(raw)
		if err != nil {
			rejected = append(rejected, Rejection{Raw: raw, Err: err})
			continue
		}
		records = append(records, rec)
		if rec.Owner != "" {
			ownerLoad[rec.Owner]++
		}
	}

	for i := range records {
		records[i].OwnerOpenDeals = ownerLoad[records[i].Owner]
	}
	return records, rejected
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		// CRM identifiers often arrive as JSON numbers.
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

func floatValue(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("unparsable number %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

// timeField parses an optional timestamp; absent stays the zero time, but a
// value that is present yet unparsable rejects the deal.
func timeField(raw map[string]any, key string) (time.Time, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return timeValue(v)
}

func optionalTimeField(raw map[string]any, key string) (*time.Time, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := timeValue(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// timeValue accepts unix seconds (how Kommo reports timestamps) or RFC 3339 /
// plain-date strings (how the snapshot table reports them).
func timeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse(time.DateOnly, s); err == nil {
			return ts, nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
