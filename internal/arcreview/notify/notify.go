// Package notify hands workflow events to the delivery collaborator (email,
// SMS). Dispatch is fire-and-forget from the workflow's point of view: a
// failure is logged and counted, never propagated into workflow state.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

type EventType string

const (
	EventVoteCast        EventType = "vote_cast"
	EventStageResolved   EventType = "stage_resolved"
	EventStageDeadlocked EventType = "stage_deadlocked"
	EventDeadlineWarning EventType = "deadline_warning"
)

type Event struct {
	Type       EventType     `json:"type"`
	RequestID  string        `json:"request_id"`
	Stage      types.Stage   `json:"stage,omitempty"`
	Cycle      int           `json:"cycle,omitempty"`
	Status     types.Status  `json:"status,omitempty"`
	Outcome    types.Outcome `json:"outcome,omitempty"`
	ActorID    string        `json:"actor_id,omitempty"`
	DeadlineAt *time.Time    `json:"deadline_at,omitempty"`
	DaysOut    int           `json:"days_out,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Dispatch(context.Context, Event) error { return nil }

// Recorder keeps dispatched events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Dispatch(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
