// Package mongo stores the booking core in MongoDB. Every unit of work is a
// multi-document transaction, so the server must run as a replica set.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	colResources    = "resources"
	colReservations = "reservations"
	colBlocks       = "calendar_blocks"
	colOverrides    = "price_overrides"
	colGuests       = "guests"
	colLedgers      = "resource_ledgers"
	colOutbox       = "app_outbox"
	colInbox        = "app_inbox"
	colIdempotency  = "app_idempotency"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// indexes back the idempotency key and guest email guarantees.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colReservations: {
			{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "status", Value: 1}, {Key: "range.check_in", Value: 1}}},
			{Keys: bson.D{{Key: "payer.guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string", "$gt": ""}}),
			},
		},
		colResources: {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "city_lower", Value: 1}, {Key: "active", Value: 1}}},
		},
		colBlocks: {
			{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colOverrides: {
			{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colGuests: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		},
		colInbox: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colIdempotency: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
