package redis

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"staybook/internal/app/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	idempotencyPrefix = "staybook:idemp:"
	inboxPrefix       = "staybook:inbox:"
	defaultInboxTTL   = 7 * 24 * time.Hour
)

type IdempotencyStore struct {
	client goredis.UniversalClient
}

func NewIdempotencyStore(client goredis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

type idempotencyDocument struct {
	Key          string    `json:"key"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	Payload      []byte    `json:"payload,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ErrorDetail  []byte    `json:"error_detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord, ttl time.Duration) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyPrefix+rec.Key, raw, ttl).Err()
}

func encodeRecord(rec middleware.IdempotencyRecord) ([]byte, error) {
	return json.Marshal(idempotencyDocument{
		Key:          rec.Key,
		Fingerprint:  rec.Fingerprint,
		Payload:      rec.Payload,
		ErrorKind:    rec.ErrorKind,
		ErrorMessage: rec.ErrorMessage,
		ErrorDetail:  rec.ErrorDetail,
		OccurredAt:   rec.OccurredAt,
	})
}

func decodeRecord(raw []byte) (middleware.IdempotencyRecord, error) {
	var doc idempotencyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return middleware.IdempotencyRecord{}, err
	}
	return middleware.IdempotencyRecord{
		Key:          doc.Key,
		Fingerprint:  doc.Fingerprint,
		Payload:      doc.Payload,
		ErrorKind:    doc.ErrorKind,
		ErrorMessage: doc.ErrorMessage,
		ErrorDetail:  doc.ErrorDetail,
		OccurredAt:   doc.OccurredAt,
	}, nil
}

// Inbox records processed event ids with SETNX. Entries expire after TTL.
type Inbox struct {
	client   goredis.UniversalClient
	consumer string
	TTL      time.Duration
}

func NewInbox(client goredis.UniversalClient, consumer string) *Inbox {
	return &Inbox{client: client, consumer: consumer, TTL: defaultInboxTTL}
}

func (i *Inbox) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := i.client.Exists(ctx, i.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark keeps the first timestamp when the id is marked twice.
func (i *Inbox) Mark(ctx context.Context, eventID string) error {
	return i.client.SetNX(ctx, i.key(eventID), time.Now().UTC().Format(time.RFC3339), i.TTL).Err()
}

func (i *Inbox) key(eventID string) string {
	return inboxPrefix + i.consumer + ":" + eventID
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
