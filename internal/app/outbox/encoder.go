package outbox

import (
	"maps"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"staybook/internal/domain/shared/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals the event struct as is. Headers are copied onto
// every record.
type JSONEventEncoder struct {
	IDGenerator func() string
	Headers     map[string]string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		ID:         e.nextID(),
		Name:       ev.EventName(),
		Aggregate:  ev.AggregateID(),
		OccurredAt: ev.OccurredAt().UTC(),
		Payload:    payload,
		Headers:    maps.Clone(e.Headers),
	}, nil
}

func (e JSONEventEncoder) nextID() string {
	if e.IDGenerator != nil {
		return e.IDGenerator()
	}
	return uuid.NewString()
}
