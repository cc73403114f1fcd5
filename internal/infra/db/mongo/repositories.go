package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/guest"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

type resourceRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r resourceRepo) ByID(ctx context.Context, id resources.ID) (*resources.Resource, error) {
	var doc resourceDocument
	if err := r.col.FindOne(r.u.sessionCtx(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainerr.NotFound("resource", string(id))
		}
		return nil, classify("mongo resource by id", err)
	}
	return doc.toAggregate(), nil
}

func (r resourceRepo) Save(ctx context.Context, res *resources.Resource) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newResourceDocument(res)
	doc.Version = res.Version + 1
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	result, err := r.col.ReplaceOne(r.u.sessionCtx(ctx), filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stale("mongo resource save")
		}
		return classify("mongo resource save", err)
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return stale("mongo resource save")
	}
	res.Version = doc.Version
	return nil
}

func (r resourceRepo) Search(ctx context.Context, params resources.SearchParams) (resources.SearchResult, error) {
	p := params.Normalized()
	filter := searchFilter(p)
	ctx = r.u.sessionCtx(ctx)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return resources.SearchResult{}, classify("mongo resource search", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(p.Offset)).
		SetLimit(int64(p.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return resources.SearchResult{}, classify("mongo resource search", err)
	}
	var docs []resourceDocument
	if err := cur.All(ctx, &docs); err != nil {
		return resources.SearchResult{}, classify("mongo resource search", err)
	}
	items := make([]*resources.Resource, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toAggregate())
	}
	return resources.SearchResult{Items: items, Total: int(total)}, nil
}

func searchFilter(p resources.SearchParams) bson.M {
	filter := bson.M{}
	if p.OnlyActive {
		filter["active"] = true
	}
	if p.Kind != "" {
		filter["kind"] = string(p.Kind)
	}
	if p.City != "" {
		filter["city_lower"] = p.City
	}
	if p.MinCapacity > 0 {
		filter["capacity"] = bson.M{"$gte": p.MinCapacity}
	}
	return filter
}

type reservationRepo struct {
	u       *Unit
	col     *mongo.Collection
	ledgers *mongo.Collection
}

func (r reservationRepo) ByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(r.u.sessionCtx(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainerr.NotFound("reservation", string(id))
		}
		return nil, classify("mongo reservation by id", err)
	}
	return doc.toAggregate(), nil
}

// Save inserts a new reservation or replaces it when the stored version
// still matches.
func (r reservationRepo) Save(ctx context.Context, res *reservation.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	ctx = r.u.sessionCtx(ctx)
	doc := newReservationDocument(res)
	doc.Version = res.Version + 1
	if res.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return reservation.ErrDuplicate
			}
			return classify("mongo reservation insert", err)
		}
		res.Version = doc.Version
		return nil
	}
	result, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": res.Version}, doc)
	if err != nil {
		return classify("mongo reservation save", err)
	}
	if result.MatchedCount == 0 {
		return stale("mongo reservation save")
	}
	res.Version = doc.Version
	return nil
}

func overlapFilter(id resources.ID, dr daterange.DateRange) bson.M {
	return bson.M{
		"resource_id":     string(id),
		"status":          bson.M{"$ne": string(reservation.StatusCancelled)},
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
}

func (r reservationRepo) Overlapping(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]*reservation.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, "mongo reservation overlapping", overlapFilter(id, dr), opts)
}

func (r reservationRepo) ByIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(r.u.sessionCtx(ctx), bson.M{"idempotency_key": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classify("mongo reservation by key", err)
	}
	return doc.toAggregate(), nil
}

func (r reservationRepo) ListByGuest(ctx context.Context, guestID string) ([]*reservation.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, "mongo reservation list", bson.M{"payer.guest_id": guestID}, opts)
}

func (r reservationRepo) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*reservation.Reservation, error) {
	ctx = r.u.sessionCtx(ctx)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(op, err)
	}
	var docs []reservationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(op, err)
	}
	out := make([]*reservation.Reservation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

// LockLedger bumps the resource's ledger document inside the transaction. A
// second transaction touching the same ledger hits a write conflict and is
// retried, so admissions on one resource commit one at a time.
func (r reservationRepo) LockLedger(ctx context.Context, id resources.ID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	update := bson.M{
		"$inc": bson.M{"seq": 1},
		"$set": bson.M{"locked_at": time.Now().UTC()},
	}
	_, err := r.ledgers.UpdateOne(r.u.sessionCtx(ctx), bson.M{"_id": string(id)}, update, options.Update().SetUpsert(true))
	return classify("mongo ledger lock", err)
}

type guestRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r guestRepo) ByEmail(ctx context.Context, email string) (*guest.Guest, error) {
	normalized, err := guest.NormalizeEmail(email)
	if err != nil {
		return nil, nil
	}
	var doc guestDocument
	if err := r.col.FindOne(r.u.sessionCtx(ctx), bson.M{"email": normalized}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classify("mongo guest by email", err)
	}
	return doc.toAggregate(), nil
}

func (r guestRepo) Save(ctx context.Context, g *guest.Guest) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newGuestDocument(g)
	_, err := r.col.ReplaceOne(r.u.sessionCtx(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return domainerr.Transient("mongo guest save", err)
	}
	return classify("mongo guest save", err)
}
