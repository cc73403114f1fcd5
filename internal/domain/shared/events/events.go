// Package events holds the facts aggregates record while they change. The
// application layer drains them into the outbox in the same unit of work.
package events

import "time"

type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded by aggregates that emit events. The zero value
// is ready to use.
type EventRecorder struct {
	recorded []DomainEvent
}

// Record appends evs in order, skipping nils.
func (r *EventRecorder) Record(evs ...DomainEvent) {
	for _, ev := range evs {
		if ev != nil {
			r.recorded = append(r.recorded, ev)
		}
	}
}

// Events returns a copy of what has been recorded since the last drain.
func (r *EventRecorder) Events() []DomainEvent {
	if len(r.recorded) == 0 {
		return nil
	}
	return append([]DomainEvent(nil), r.recorded...)
}

// DrainEvents hands over the recorded events and forgets them.
func (r *EventRecorder) DrainEvents() []DomainEvent {
	out := r.recorded
	r.recorded = nil
	return out
}

// DiscardEvents drops recorded events, as when an aggregate is copied out of
// a store.
func (r *EventRecorder) DiscardEvents() {
	r.recorded = nil
}
