package engine

import (
	"context"
	"time"
)

// ProgressStore persists Progress. Implementations assume a single writer.
type ProgressStore interface {
	// Load returns the persisted progress, completed with a pending record
	// for every catalog id that has none. Load never writes. Unreadable
	// state is reported as a corruption error.
	Load(ctx context.Context) (Progress, error)

	// Save replaces the persisted progress wholesale. A crash during Save
	// leaves either the old or the new content, never a mix.
	Save(ctx context.Context, p Progress) error
}

// Recorder is the view of the progress store handed to handlers. It only
// allows reads and state-machine transitions.
type Recorder interface {
	// SetStatus transitions one achievement and persists the change.
	SetStatus(ctx context.Context, id string, status Status, details string) error

	// ShouldAttempt reports whether id is pending or failed.
	ShouldAttempt(ctx context.Context, id string) (bool, error)

	// Status returns the current record of id.
	Status(ctx context.Context, id string) (StatusRecord, error)
}

// TransitionEvent describes one persisted status change.
type TransitionEvent struct {
	RunID       string    `json:"run_id,omitempty"`
	Achievement string    `json:"achievement"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Details     string    `json:"details,omitempty"`
	At          time.Time `json:"at"`
}

// TransitionObserver is notified after a transition has been saved.
type TransitionObserver interface {
	OnTransition(ctx context.Context, ev TransitionEvent)
}

// RunObserver is notified about run progress. Observers must not block.
type RunObserver interface {
	RunStarted(ctx context.Context, summary *RunSummary)
	HandlerFinished(ctx context.Context, runID string, result HandlerResult)
	RunFinished(ctx context.Context, summary *RunSummary)
}

// AdmissionRequest is what a Gate decides on.
type AdmissionRequest struct {
	Account      string   `json:"account"`
	Handler      string   `json:"handler"`
	Phase        int      `json:"phase"`
	Targets      []string `json:"targets"`
	Requires     []string `json:"requires"`
	NeedsAccount bool     `json:"needs_account"`
}

// Admission is a Gate decision. Reason is set when Allowed is false.
type Admission struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate decides whether a handler may run before its targets are marked
// attempting.
type Gate interface {
	Admit(ctx context.Context, req AdmissionRequest) (Admission, error)
}

type runIDKey struct{}

// ContextWithRunID returns a context carrying the run id.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
