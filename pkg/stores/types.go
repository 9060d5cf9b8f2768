package stores

import (
	"time"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// Run is a persisted run summary.
type Run struct {
	ID          string                 `json:"id" yaml:"id"`
	Account     string                 `json:"account" yaml:"account"`
	StartedAt   time.Time              `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Attempted   int                    `json:"attempted" yaml:"attempted"`
	Succeeded   int                    `json:"succeeded" yaml:"succeeded"`
	Interrupted bool                   `json:"interrupted" yaml:"interrupted"`
	Results     []engine.HandlerResult `json:"results" yaml:"results"`
}

// Transition is a persisted status change.
type Transition struct {
	ID          int64         `json:"id" yaml:"id"`
	RunID       string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Achievement string        `json:"achievement" yaml:"achievement"`
	From        engine.Status `json:"from" yaml:"from"`
	To          engine.Status `json:"to" yaml:"to"`
	Details     string        `json:"details,omitempty" yaml:"details,omitempty"`
	At          time.Time     `json:"at" yaml:"at"`
}
