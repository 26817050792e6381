package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/iWorld-y/deal_radar/internal/model"
)

func validRaw() map[string]any {
	return map[string]any{
		"id":               "42",
		"name":             "Acme renewal",
		"stage":            "negotiation",
		"amount":           1200.0,
		"owner":            "7",
		"created_at":       "2025-08-01T10:00:00Z",
		"last_activity_at": "2025-08-20T10:00:00Z",
		"stage_entered_at": "2025-08-10T10:00:00Z",
		"last_message":     "looks good",
	}
}

func TestDeal_Valid(t *testing.T) {
	rec, err := Deal(validRaw())
	if err != nil {
		t.Fatalf("Deal() error = %v", err)
	}
	if rec.ID != "42" || rec.Stage != "negotiation" || rec.Amount != 1200 {
		t.Errorf("Deal() = %+v", rec)
	}
	if rec.LastActivityAt == nil || rec.StageEnteredAt == nil {
		t.Errorf("expected timestamps to be set: %+v", rec)
	}
	want := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	if !rec.LastActivityAt.Equal(want) {
		t.Errorf("LastActivityAt = %v, want %v", rec.LastActivityAt, want)
	}
}

func TestDeal_MissingMandatoryFields(t *testing.T) {
	cases := []struct {
		name  string
		field string
	}{
		{"missing id", "id"},
		{"missing stage", "stage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			delete(raw, tc.field)
			_, err := Deal(raw)
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Deal() error = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestDeal_UnparsableAmount(t *testing.T) {
	raw := validRaw()
	raw["amount"] = "twelve hundred"
	if _, err := Deal(raw); err == nil {
		t.Error("Deal() accepted unparsable amount")
	}

	raw["amount"] = -5.0
	if _, err := Deal(raw); err == nil {
		t.Error("Deal() accepted negative amount")
	}
}

func TestDeal_AbsentLastActivityStaysAbsent(t *testing.T) {
	raw := validRaw()
	delete(raw, "last_activity_at")
	rec, err := Deal(raw)
	if err != nil {
		t.Fatalf("Deal() error = %v", err)
	}
	// "never" must stay nil, not become the epoch or now.
	if rec.LastActivityAt != nil {
		t.Errorf("LastActivityAt = %v, want nil", rec.LastActivityAt)
	}
}

func TestDeal_UnixTimestamps(t *testing.T) {
	raw := validRaw()
	raw["created_at"] = int64(1754042400)
	raw["last_activity_at"] = float64(1755684000) // JSON numbers decode as float64
	rec, err := Deal(raw)
	if err != nil {
		t.Fatalf("Deal() error = %v", err)
	}
	if rec.CreatedAt.Unix() != 1754042400 {
		t.Errorf("CreatedAt = %v", rec.CreatedAt)
	}
	if rec.LastActivityAt == nil || rec.LastActivityAt.Unix() != 1755684000 {
		t.Errorf("LastActivityAt = %v", rec.LastActivityAt)
	}
}

func TestBatch_RejectsWithoutAborting(t *testing.T) {
	bad := validRaw()
	delete(bad, "id")
	records, rejected := Batch([]map[string]any{validRaw(), bad})
	if len(records) != 1 {
		t.Errorf("Batch() records = %d, want 1", len(records))
	}
	if len(rejected) != 1 {
		t.Errorf("Batch() rejected = %d, want 1", len(rejected))
	}
}

func TestBatch_OwnerLoad(t *testing.T) {
	raws := make([]map[string]any, 0, 3)
	for i, owner := range []string{"7", "7", "9"} {
		raw := validRaw()
		raw["id"] = string(rune('a' + i))
		raw["owner"] = owner
		raws = append(raws, raw)
	}
	records, _ := Batch(raws)
	for _, rec := range records {
		want := 1
		if rec.Owner == "7" {
			want = 2
		}
		if rec.OwnerOpenDeals != want {
			t.Errorf("owner %s: OwnerOpenDeals = %d, want %d", rec.Owner, rec.OwnerOpenDeals, want)
		}
	}
}
