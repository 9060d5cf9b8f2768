package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Tracker applies status transitions to a ProgressStore. Every mutating call
// is a full load-modify-save cycle, so each transition is durable before the
// call returns.
type Tracker struct {
	store     ProgressStore
	logger    zerolog.Logger
	now       func() time.Time
	observers []TransitionObserver

	mu sync.Mutex
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source used to stamp transitions.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithTrackerLogger sets the tracker logger.
func WithTrackerLogger(logger zerolog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithTransitionObserver registers an observer called after each saved
// transition.
func WithTransitionObserver(obs TransitionObserver) TrackerOption {
	return func(t *Tracker) {
		if obs != nil {
			t.observers = append(t.observers, obs)
		}
	}
}

// NewTracker creates a tracker on top of store.
func NewTracker(store ProgressStore, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot loads the current progress.
func (t *Tracker) Snapshot(ctx context.Context) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Load(ctx)
}

// Status returns the current record of id.
func (t *Tracker) Status(ctx context.Context, id string) (StatusRecord, error) {
	p, err := t.Snapshot(ctx)
	if err != nil {
		return StatusRecord{}, err
	}
	return p.Record(id), nil
}

// ShouldAttempt reports whether id is pending or failed.
func (t *Tracker) ShouldAttempt(ctx context.Context, id string) (bool, error) {
	rec, err := t.Status(ctx, id)
	if err != nil {
		return false, err
	}
	return ShouldAttempt(rec), nil
}

// IsEarned reports whether id is earned.
func (t *Tracker) IsEarned(ctx context.Context, id string) (bool, error) {
	rec, err := t.Status(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.Status == StatusEarned, nil
}

// SetStatus transitions a single achievement.
func (t *Tracker) SetStatus(ctx context.Context, id string, status Status, details string) error {
	return t.MarkAll(ctx, []string{id}, status, details)
}

// MarkAll transitions every id in ids with a single durable write.
func (t *Tracker) MarkAll(ctx context.Context, ids []string, status Status, details string) error {
	if err := status.Validate(); err != nil {
		return NewValidationError("cannot transition", err).WithCode(ErrCodeInvalidStatus)
	}
	if len(ids) == 0 {
		return nil
	}

	t.mu.Lock()
	p, err := t.store.Load(ctx)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	now := t.now()
	events := make([]TransitionEvent, 0, len(ids))
	runID := RunIDFromContext(ctx)
	for _, id := range ids {
		prev := p.Record(id)
		next := Transition(prev, status, details, now)
		p[id] = next
		events = append(events, TransitionEvent{
			RunID:       runID,
			Achievement: id,
			From:        prev.Status,
			To:          status,
			Details:     next.DetailText(),
			At:          now,
		})
	}

	if err := t.store.Save(ctx, p); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to save progress: %w", err)
	}
	t.mu.Unlock()

	for _, ev := range events {
		t.logger.Debug().
			Str("achievement", ev.Achievement).
			Str("from", string(ev.From)).
			Str("to", string(ev.To)).
			Msg("Status transition")
		for _, obs := range t.observers {
			obs.OnTransition(ctx, ev)
		}
	}
	return nil
}

// Reset moves the given ids back to pending.
func (t *Tracker) Reset(ctx context.Context, ids []string, details string) error {
	return t.MarkAll(ctx, ids, StatusPending, details)
}

var _ Recorder = (*Tracker)(nil)
