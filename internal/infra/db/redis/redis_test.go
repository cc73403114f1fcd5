package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/middleware"
)

func Test_IdempotencyRecord_Encoding(t *testing.T) {
	rec := middleware.IdempotencyRecord{
		Key:         "checkout-1",
		Fingerprint: "f1",
		Payload:     []byte(`{"reservation":{"id":"r-1"}}`),
		OccurredAt:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := encodeRecord(rec)
	require.NoError(t, err)
	got, err := decodeRecord(raw)
	require.NoError(t, err)

	assert.Equal(t, rec, got)
}

func Test_IdempotencyRecord_EncodingKeepsErrorDetail(t *testing.T) {
	rec := middleware.IdempotencyRecord{
		Key:          "checkout-2",
		Fingerprint:  "f2",
		ErrorKind:    "conflict",
		ErrorMessage: "conflict: 2026-07-02 is blocked",
		ErrorDetail:  []byte(`{"kind":"conflict","date":"2026-07-02","reason":"blocked"}`),
		OccurredAt:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := encodeRecord(rec)
	require.NoError(t, err)
	got, err := decodeRecord(raw)
	require.NoError(t, err)

	assert.Equal(t, rec, got)
}

func Test_IdempotencyRecord_DecodeCorrupt(t *testing.T) {
	_, err := decodeRecord([]byte("{"))

	assert.Error(t, err)
}

func Test_Inbox_KeysAreScopedByConsumer(t *testing.T) {
	a := NewInbox(nil, "payments")
	b := NewInbox(nil, "audit")

	assert.Equal(t, "staybook:inbox:payments:evt-1", a.key("evt-1"))
	assert.NotEqual(t, a.key("evt-1"), b.key("evt-1"))
	assert.Equal(t, 7*24*time.Hour, a.TTL)
}
