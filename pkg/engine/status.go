package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Status is the lifecycle state of a single achievement.
type Status string

const (
	// StatusPending means no attempt has been made yet.
	StatusPending Status = "pending"

	// StatusAttempting means an attempt started and has not reported back.
	// A record left in this state after a run was interrupted mid-handler.
	StatusAttempting Status = "attempting"

	// StatusEarned means the achievement was reported as earned.
	StatusEarned Status = "earned"

	// StatusFailed means the last attempt failed. Failed records are retried.
	StatusFailed Status = "failed"

	// StatusSkipped means the achievement was deliberately not attempted.
	StatusSkipped Status = "skipped"
)

// AllStatuses lists every status in report order.
var AllStatuses = []Status{StatusEarned, StatusAttempting, StatusFailed, StatusSkipped, StatusPending}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusAttempting, StatusEarned, StatusFailed, StatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid status: %q", string(s))
	}
}

// IsTerminal returns true for statuses that are never retried automatically.
func (s Status) IsTerminal() bool {
	return s == StatusEarned || s == StatusSkipped
}

// UnmarshalJSON rejects unknown status values.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// StatusRecord is the persisted state of one achievement.
// Updated and Details are nil until first written; they serialize as null.
type StatusRecord struct {
	Status  Status     `json:"status" yaml:"status"`
	Updated *time.Time `json:"updated" yaml:"updated"`
	Details *string    `json:"details" yaml:"details"`
}

// PendingRecord returns the record synthesized for an achievement that has
// never been written.
func PendingRecord() StatusRecord {
	return StatusRecord{Status: StatusPending}
}

// DetailText returns the details or an empty string.
func (r StatusRecord) DetailText() string {
	if r.Details == nil {
		return ""
	}
	return *r.Details
}

// ShouldAttempt reports whether a record is eligible for an attempt.
// Only pending and failed records are.
func ShouldAttempt(rec StatusRecord) bool {
	return rec.Status == StatusPending || rec.Status == StatusFailed
}

// Eligible is ShouldAttempt extended with the retry-interrupted policy: when
// retryInterrupted is set, records stranded in attempting are eligible too.
func Eligible(rec StatusRecord, retryInterrupted bool) bool {
	if ShouldAttempt(rec) {
		return true
	}
	return retryInterrupted && rec.Status == StatusAttempting
}

// Transition returns rec moved to status to. The move is unconditional: any
// status may follow any other. Updated is stamped with now and Details is
// replaced only when details is non-empty.
func Transition(rec StatusRecord, to Status, details string, now time.Time) StatusRecord {
	stamp := now
	next := StatusRecord{
		Status:  to,
		Updated: &stamp,
		Details: rec.Details,
	}
	if details != "" {
		d := details
		next.Details = &d
	}
	return next
}

// Progress maps achievement ids to their records.
type Progress map[string]StatusRecord

// StatusOf returns the status of id, or pending when id has no record.
func (p Progress) StatusOf(id string) Status {
	rec, ok := p[id]
	if !ok {
		return StatusPending
	}
	return rec.Status
}

// Record returns the record of id, or a pending record when it has none.
func (p Progress) Record(id string) StatusRecord {
	rec, ok := p[id]
	if !ok {
		return PendingRecord()
	}
	return rec
}

// IsEarned reports whether id is earned.
func (p Progress) IsEarned(id string) bool {
	return p.StatusOf(id) == StatusEarned
}

// Complete fills a pending record for every id in ids that has none and
// returns the ids it added.
func (p Progress) Complete(ids []string) []string {
	var added []string
	for _, id := range ids {
		if _, ok := p[id]; !ok {
			p[id] = PendingRecord()
			added = append(added, id)
		}
	}
	return added
}

// Validate checks every record's status.
func (p Progress) Validate() error {
	for _, id := range p.IDs() {
		if err := p[id].Status.Validate(); err != nil {
			return fmt.Errorf("achievement %s: %w", id, err)
		}
	}
	return nil
}

// IDs returns the ids in the progress map, sorted.
func (p Progress) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for id, rec := range p {
		c := StatusRecord{Status: rec.Status}
		if rec.Updated != nil {
			t := *rec.Updated
			c.Updated = &t
		}
		if rec.Details != nil {
			d := *rec.Details
			c.Details = &d
		}
		out[id] = c
	}
	return out
}
