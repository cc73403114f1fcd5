package memory

import (
	"context"
	"time"

	"staybook/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type unitOutbox struct {
	u *Unit
}

func (o unitOutbox) Add(ctx context.Context, record outbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.records = append(o.u.records, record)
	return nil
}

// Claim hands the oldest due record to workerID.
func (s *Store) Claim(ctx context.Context, workerID string) (*outbox.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, e := range s.outbox {
		if e.state != stateNew && e.state != stateFailed {
			continue
		}
		if e.nextAttempt.After(now) {
			continue
		}
		e.state = stateClaimed
		e.claimedBy = workerID
		return &outbox.Pending{EventRecord: e.record, Attempts: e.attempts}, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(id); e != nil {
		e.state = stateSent
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(id); e != nil {
		e.state = stateFailed
		e.attempts++
		e.nextAttempt = next
		e.lastError = errMsg
	}
	return nil
}

// Records lists committed outbox records in insertion order.
func (s *Store) Records() []outbox.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]outbox.EventRecord, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e.record)
	}
	return out
}

func (s *Store) entry(id string) *outboxEntry {
	for _, e := range s.outbox {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}

var _ outbox.Source = (*Store)(nil)
