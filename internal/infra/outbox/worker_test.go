package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type recordingProducer struct {
	mu   sync.Mutex
	fail error
	sent []published
}

func (p *recordingProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func seed(t *testing.T, store *memory.Store, records ...appoutbox.EventRecord) {
	t.Helper()
	ctx := context.Background()
	unit, err := store.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, unit.Outbox().Add(ctx, rec))
	}
	require.NoError(t, unit.Commit(ctx))
}

func Test_Worker_DrainPublishesEnvelopes(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		appoutbox.EventRecord{ID: "e-1", Name: "reservation.requested", Aggregate: "r-1", Payload: []byte(`{"reservation_id":"r-1"}`), Headers: map[string]string{"traceparent": "00-abc-def-01"}},
		appoutbox.EventRecord{ID: "e-2", Name: "availability.date_blocked", Aggregate: "villa", Payload: []byte(`{"resource_id":"villa"}`)},
	)
	producer := &recordingProducer{}
	w := &Worker{Source: store, Producer: producer, TopicPrefix: "stage."}

	require.NoError(t, w.Drain(context.Background()))

	require.Len(t, producer.sent, 2)
	first := producer.sent[0]
	assert.Equal(t, "stage.reservation.events.v1", first.topic)
	assert.Equal(t, "r-1", first.key)
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])

	var evt envelope
	require.NoError(t, json.Unmarshal(first.payload, &evt))
	assert.Equal(t, "e-1", evt.ID)
	assert.Equal(t, "reservation.requested.v1", evt.Type)
	assert.Equal(t, "app://staybook", evt.Source)
	assert.Equal(t, "00-abc-def-01", evt.TraceParent)
	assert.JSONEq(t, `{"reservation_id":"r-1"}`, string(evt.Data))

	assert.Equal(t, "stage.availability.events.v1", producer.sent[1].topic)

	rec, err := store.Claim(context.Background(), "other")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func Test_Worker_FailedPublishIsRescheduled(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, appoutbox.EventRecord{ID: "e-1", Name: "reservation.confirmed", Aggregate: "r-1", Payload: []byte(`{}`)})
	producer := &recordingProducer{fail: errors.New("broker down")}
	w := &Worker{Source: store, Producer: producer, Backoff: []time.Duration{time.Hour}}

	require.NoError(t, w.Drain(context.Background()))

	rec, err := store.Claim(context.Background(), "other")
	require.NoError(t, err)
	assert.Nil(t, rec, "record must wait for its backoff")
}

func Test_Worker_RetriesAfterBackoff(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, appoutbox.EventRecord{ID: "e-1", Name: "reservation.confirmed", Aggregate: "r-1", Payload: []byte(`{}`)})
	producer := &recordingProducer{fail: errors.New("broker down")}
	past := time.Now().Add(-time.Minute)
	w := &Worker{Source: store, Producer: producer, Backoff: []time.Duration{0}, Clock: func() time.Time { return past }}

	_, err := w.processOnce(context.Background())
	require.NoError(t, err)

	producer.fail = nil
	require.NoError(t, w.Drain(context.Background()))
	require.Len(t, producer.sent, 1)
	assert.Equal(t, "e-1", producer.sent[0].headers["ce-id"])
}

func Test_Worker_NextRetryUsesLastBackoffStep(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	w := &Worker{Backoff: []time.Duration{time.Second, time.Minute}, Clock: func() time.Time { return now }}

	assert.Equal(t, now.Add(time.Second), w.nextRetry(0))
	assert.Equal(t, now.Add(time.Minute), w.nextRetry(1))
	assert.Equal(t, now.Add(time.Minute), w.nextRetry(7))
	assert.Equal(t, now.Add(5*time.Second), (&Worker{Clock: func() time.Time { return now }}).nextRetry(0))
}

func Test_Worker_RunRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())

	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
}
