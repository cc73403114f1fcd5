// Package outbox is the write side of the transactional outbox: handlers
// stage serialized domain events in the same unit of work as the state they
// describe, and a relay later claims and publishes them.
package outbox

import (
	"context"
	"time"

	"staybook/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Aggregate  string
	OccurredAt time.Time
	Payload    []byte
	Headers    map[string]string
}

// Outbox is bound to one unit of work.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// RecordDomainEvents stages evs in order. A nil encoder means JSON; a nil
// box means the caller has nowhere to stage and nothing is done.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err == nil {
			err = box.Add(ctx, rec)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Pending is a record a relay worker holds a claim on.
type Pending struct {
	EventRecord
	Attempts int
}

// Source is the relay's view of the store. Claim returns nil, nil when no
// record is due.
type Source interface {
	Claim(ctx context.Context, workerID string) (*Pending, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}
