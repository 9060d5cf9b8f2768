package engine

import (
	"encoding/json"
	"testing"
	"time"
)

func TestShouldAttempt(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusFailed, true},
		{StatusAttempting, false},
		{StatusEarned, false},
		{StatusSkipped, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := ShouldAttempt(StatusRecord{Status: tt.status}); got != tt.want {
				t.Errorf("ShouldAttempt(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestEligibleRetryInterrupted(t *testing.T) {
	rec := StatusRecord{Status: StatusAttempting}

	if Eligible(rec, false) {
		t.Error("attempting should not be eligible by default")
	}
	if !Eligible(rec, true) {
		t.Error("attempting should be eligible with retryInterrupted")
	}
	if Eligible(StatusRecord{Status: StatusEarned}, true) {
		t.Error("earned must never be eligible")
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := "previous attempt"

	t.Run("stamps updated", func(t *testing.T) {
		got := Transition(PendingRecord(), StatusEarned, "", now)
		if got.Status != StatusEarned {
			t.Errorf("Status = %s, want earned", got.Status)
		}
		if got.Updated == nil || !got.Updated.Equal(now) {
			t.Errorf("Updated = %v, want %v", got.Updated, now)
		}
		if got.Details != nil {
			t.Errorf("Details = %q, want nil", *got.Details)
		}
	})

	t.Run("keeps details when empty", func(t *testing.T) {
		rec := StatusRecord{Status: StatusFailed, Details: &old}
		got := Transition(rec, StatusAttempting, "", now)
		if got.DetailText() != old {
			t.Errorf("Details = %q, want %q", got.DetailText(), old)
		}
	})

	t.Run("replaces details when given", func(t *testing.T) {
		rec := StatusRecord{Status: StatusFailed, Details: &old}
		got := Transition(rec, StatusFailed, "new error", now)
		if got.DetailText() != "new error" {
			t.Errorf("Details = %q, want %q", got.DetailText(), "new error")
		}
		if rec.DetailText() != old {
			t.Error("Transition mutated its input")
		}
	})

	t.Run("any status to any status", func(t *testing.T) {
		for _, from := range AllStatuses {
			for _, to := range AllStatuses {
				got := Transition(StatusRecord{Status: from}, to, "", now)
				if got.Status != to {
					t.Errorf("%s -> %s gave %s", from, to, got.Status)
				}
			}
		}
	})
}

func TestStatusRecordJSON(t *testing.T) {
	data, err := json.Marshal(PendingRecord())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"status":"pending","updated":null,"details":null}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var rec StatusRecord
	if err := json.Unmarshal([]byte(`{"status":"won","updated":null,"details":null}`), &rec); err == nil {
		t.Error("Unmarshal() accepted an unknown status")
	}
}

func TestProgressComplete(t *testing.T) {
	p := Progress{"a": {Status: StatusEarned}}
	added := p.Complete([]string{"a", "b", "c"})

	if len(added) != 2 {
		t.Fatalf("Complete() added %v, want [b c]", added)
	}
	if p.StatusOf("a") != StatusEarned {
		t.Error("Complete() overwrote an existing record")
	}
	if p.StatusOf("b") != StatusPending || p["b"].Updated != nil {
		t.Error("Complete() should synthesize pending records without a timestamp")
	}
}
