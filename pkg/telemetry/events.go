package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// Event is a timeline entry of a campaign run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// RunID is the associated run id, if any.
	RunID string `json:"run_id,omitempty"`

	// Handler is the associated handler, if any.
	Handler string `json:"handler,omitempty"`

	// Achievement is the associated achievement id, if any.
	Achievement string `json:"achievement,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeRunStarted       = "run.started"
	EventTypeRunCompleted     = "run.completed"
	EventTypeHandlerCompleted = "handler.completed"
	EventTypeHandlerFailed    = "handler.failed"
	EventTypeHandlerDenied    = "handler.denied"
	EventTypeHandlerSkipped   = "handler.skipped"
	EventTypeStatusChanged    = "achievement.status_changed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles events. Subscribers are called synchronously in
// publish order.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. It implements
// engine.RunObserver and engine.TransitionObserver.
type EventPublisher struct {
	config      EventsConfig
	subscribers []subscriberEntry
	mu          sync.RWMutex
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	return &EventPublisher{config: cfg}
}

// Subscribe adds a subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// Publish delivers an event to every matching subscriber.
func (ep *EventPublisher) Publish(event Event) {
	if !ep.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	ep.mu.RLock()
	defer ep.mu.RUnlock()
	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// RunStarted implements engine.RunObserver.
func (ep *EventPublisher) RunStarted(_ context.Context, s *engine.RunSummary) {
	ep.Publish(Event{
		Type:      EventTypeRunStarted,
		Timestamp: s.StartedAt,
		RunID:     s.RunID,
		Message:   fmt.Sprintf("Run %s started for %s", s.RunID, s.Account),
		Level:     EventLevelInfo,
		Data:      map[string]interface{}{"account": s.Account},
	})
}

// HandlerFinished implements engine.RunObserver.
func (ep *EventPublisher) HandlerFinished(_ context.Context, runID string, r engine.HandlerResult) {
	ev := Event{
		Type:    EventTypeHandlerCompleted,
		RunID:   runID,
		Handler: r.Name,
		Message: fmt.Sprintf("Handler %s: %s", r.Name, r.Outcome),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"phase":    r.Phase,
			"outcome":  string(r.Outcome),
			"eligible": r.Eligible,
			"duration": r.Duration.Seconds(),
		},
	}
	switch r.Outcome {
	case engine.OutcomeFailed:
		ev.Type = EventTypeHandlerFailed
		ev.Level = EventLevelError
		ev.Data["detail"] = r.Detail
	case engine.OutcomeDenied:
		ev.Type = EventTypeHandlerDenied
		ev.Level = EventLevelWarning
		ev.Data["reason"] = r.Detail
	case engine.OutcomeSkipped:
		ev.Type = EventTypeHandlerSkipped
		ev.Level = EventLevelWarning
		ev.Data["reason"] = r.Detail
	}
	ep.Publish(ev)
}

// RunFinished implements engine.RunObserver.
func (ep *EventPublisher) RunFinished(_ context.Context, s *engine.RunSummary) {
	ep.Publish(Event{
		Type:      EventTypeRunCompleted,
		Timestamp: s.CompletedAt,
		RunID:     s.RunID,
		Message:   fmt.Sprintf("Run %s completed: %d/%d handlers succeeded", s.RunID, s.Succeeded, s.Attempted),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"attempted":   s.Attempted,
			"succeeded":   s.Succeeded,
			"interrupted": s.Interrupted,
		},
	})
}

// OnTransition implements engine.TransitionObserver.
func (ep *EventPublisher) OnTransition(_ context.Context, ev engine.TransitionEvent) {
	ep.Publish(Event{
		Type:        EventTypeStatusChanged,
		Timestamp:   ev.At,
		RunID:       ev.RunID,
		Achievement: ev.Achievement,
		Message:     fmt.Sprintf("%s: %s -> %s", ev.Achievement, ev.From, ev.To),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"from":    string(ev.From),
			"to":      string(ev.To),
			"details": ev.Details,
		},
	})
}

// JSONLinesSubscriber returns a subscriber writing one JSON object per line.
func JSONLinesSubscriber(w io.Writer) EventSubscriber {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(event)
	}
}

var (
	_ engine.RunObserver        = (*EventPublisher)(nil)
	_ engine.TransitionObserver = (*EventPublisher)(nil)
)
