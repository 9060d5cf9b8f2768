package engine

import (
	"context"
	"errors"
	"testing"
)

type transitionLog struct {
	events []TransitionEvent
}

func (l *transitionLog) OnTransition(ctx context.Context, ev TransitionEvent) {
	l.events = append(l.events, ev)
}

func TestTracker_MarkAllSingleWrite(t *testing.T) {
	store := newMemStore([]string{"a", "b"}, nil)
	log := &transitionLog{}
	tr := NewTracker(store, WithClock(fixedClock()), WithTransitionObserver(log))

	ctx := ContextWithRunID(context.Background(), "run-1")
	if err := tr.MarkAll(ctx, []string{"a", "b"}, StatusAttempting, ""); err != nil {
		t.Fatalf("MarkAll() error = %v", err)
	}

	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if store.status("a") != StatusAttempting || store.status("b") != StatusAttempting {
		t.Error("targets not marked attempting")
	}
	if len(log.events) != 2 {
		t.Fatalf("observer saw %d events, want 2", len(log.events))
	}
	if log.events[0].RunID != "run-1" || log.events[0].From != StatusPending {
		t.Errorf("event = %+v, want run-1 from pending", log.events[0])
	}
}

func TestTracker_RejectsInvalidStatus(t *testing.T) {
	tr := NewTracker(newMemStore([]string{"a"}, nil))

	err := tr.SetStatus(context.Background(), "a", Status("won"), "")
	if !IsValidation(err) {
		t.Errorf("SetStatus() error = %v, want validation error", err)
	}
}

func TestTracker_SaveFailure(t *testing.T) {
	store := newMemStore([]string{"a"}, nil)
	store.saveErr = errors.New("disk full")
	tr := NewTracker(store)

	if err := tr.SetStatus(context.Background(), "a", StatusEarned, ""); err == nil {
		t.Error("SetStatus() expected error")
	}
}

func TestTracker_StatusQueries(t *testing.T) {
	store := newMemStore([]string{"a", "b"}, Progress{"a": {Status: StatusEarned}})
	tr := NewTracker(store)
	ctx := context.Background()

	earned, err := tr.IsEarned(ctx, "a")
	if err != nil || !earned {
		t.Errorf("IsEarned(a) = %v, %v; want true", earned, err)
	}

	should, err := tr.ShouldAttempt(ctx, "b")
	if err != nil || !should {
		t.Errorf("ShouldAttempt(b) = %v, %v; want true", should, err)
	}
}
