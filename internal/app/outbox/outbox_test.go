package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/events"
)

type sample struct {
	ID string
	At time.Time
}

func (s sample) EventName() string     { return "sample.happened" }
func (s sample) AggregateID() string   { return s.ID }
func (s sample) OccurredAt() time.Time { return s.At }

type box struct{ records []EventRecord }

func (b *box) Add(_ context.Context, rec EventRecord) error {
	b.records = append(b.records, rec)
	return nil
}

func Test_RecordDomainEvents_EncodesEveryEvent(t *testing.T) {
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	b := &box{}
	enc := JSONEventEncoder{IDGenerator: func() string { return "evt-1" }, Headers: map[string]string{"source": "test"}}

	err := RecordDomainEvents(context.Background(), b, enc, []events.DomainEvent{sample{ID: "agg-1", At: at}})

	require.NoError(t, err)
	require.Len(t, b.records, 1)
	rec := b.records[0]
	assert.Equal(t, "evt-1", rec.ID)
	assert.Equal(t, "sample.happened", rec.Name)
	assert.Equal(t, "agg-1", rec.Aggregate)
	assert.Equal(t, time.UTC, rec.OccurredAt.Location())
	assert.Equal(t, "test", rec.Headers["source"])
	assert.JSONEq(t, `{"ID":"agg-1","At":"2026-07-01T09:00:00+01:00"}`, string(rec.Payload))
}

func Test_RecordDomainEvents_NoopWithoutEvents(t *testing.T) {
	assert.NoError(t, RecordDomainEvents(context.Background(), nil, nil, []events.DomainEvent{sample{}}))
	b := &box{}
	assert.NoError(t, RecordDomainEvents(context.Background(), b, nil, nil))
	assert.Empty(t, b.records)
}
