package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/middleware"
)

// IdempotencyStore keeps command results until expires_at; a TTL index
// removes them afterwards.
type IdempotencyStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewIdempotencyStore(db *mongo.Database) *IdempotencyStore {
	return &IdempotencyStore{col: db.Collection(colIdempotency), now: time.Now}
}

type idempotencyDocument struct {
	ID           string    `bson:"_id"`
	Fingerprint  string    `bson:"fingerprint,omitempty"`
	Payload      []byte    `bson:"payload,omitempty"`
	ErrorKind    string    `bson:"error_kind,omitempty"`
	ErrorMessage string    `bson:"error_message,omitempty"`
	ErrorDetail  []byte    `bson:"error_detail,omitempty"`
	OccurredAt   time.Time `bson:"occurred_at"`
	ExpiresAt    time.Time `bson:"expires_at,omitempty"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	// the TTL monitor runs once a minute
	if !doc.ExpiresAt.IsZero() && !s.now().Before(doc.ExpiresAt) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return doc.toRecord(), true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord, ttl time.Duration) error {
	doc := idempotencyDocument{
		ID:           rec.Key,
		Fingerprint:  rec.Fingerprint,
		Payload:      rec.Payload,
		ErrorKind:    rec.ErrorKind,
		ErrorMessage: rec.ErrorMessage,
		ErrorDetail:  rec.ErrorDetail,
		OccurredAt:   rec.OccurredAt,
	}
	if ttl > 0 {
		doc.ExpiresAt = s.now().UTC().Add(ttl)
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{
		Key:          d.ID,
		Fingerprint:  d.Fingerprint,
		Payload:      d.Payload,
		ErrorKind:    d.ErrorKind,
		ErrorMessage: d.ErrorMessage,
		ErrorDetail:  d.ErrorDetail,
		OccurredAt:   d.OccurredAt,
	}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
