package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type inboxDocument struct {
	EventID    string    `bson:"event_id"`
	Consumer   string    `bson:"consumer"`
	ReceivedAt time.Time `bson:"received_at"`
}

// Inbox remembers which events a consumer has handled. The unique
// (event_id, consumer) index keeps one document per event.
type Inbox struct {
	col      *mongo.Collection
	consumer string
	now      func() time.Time
}

func NewInbox(db *mongo.Database, consumer string) *Inbox {
	return &Inbox{col: db.Collection(colInbox), consumer: consumer, now: time.Now}
}

func (s *Inbox) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, s.key(eventID), options.Count().SetLimit(1))
	if err != nil {
		return false, classify("mongo inbox", err)
	}
	return n > 0, nil
}

// Mark records eventID. A duplicate key means it was already marked.
func (s *Inbox) Mark(ctx context.Context, eventID string) error {
	_, err := s.col.InsertOne(ctx, inboxDocument{EventID: eventID, Consumer: s.consumer, ReceivedAt: s.now().UTC()})
	if err == nil || mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return classify("mongo inbox", err)
}

func (s *Inbox) key(eventID string) bson.D {
	return bson.D{{Key: "event_id", Value: eventID}, {Key: "consumer", Value: s.consumer}}
}
