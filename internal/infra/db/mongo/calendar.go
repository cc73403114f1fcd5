package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
)

func dayRangeFilter(id resources.ID, dr daterange.DateRange) bson.M {
	return bson.M{
		"resource_id": string(id),
		"date":        bson.M{"$gte": dr.CheckIn.UnixMilli(), "$lt": dr.CheckOut.UnixMilli()},
	}
}

func byDate() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
}

type blockRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r blockRepo) Blocks(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]availability.BlockedDate, error) {
	ctx = r.u.sessionCtx(ctx)
	cur, err := r.col.Find(ctx, dayRangeFilter(id, dr), byDate())
	if err != nil {
		return nil, classify("mongo blocks", err)
	}
	var docs []blockDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("mongo blocks", err)
	}
	out := make([]availability.BlockedDate, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r blockRepo) Save(ctx context.Context, block availability.BlockedDate) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newBlockDocument(block)
	_, err := r.col.ReplaceOne(r.u.sessionCtx(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify("mongo block save", err)
}

func (r blockRepo) Delete(ctx context.Context, id resources.ID, date time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	res, err := r.col.DeleteOne(r.u.sessionCtx(ctx), bson.M{"_id": dayID(id, date)})
	if err != nil {
		return classify("mongo block delete", err)
	}
	if res.DeletedCount == 0 {
		return availability.ErrBlockNotFound
	}
	return nil
}

type overrideRepo struct {
	u   *Unit
	col *mongo.Collection
}

func (r overrideRepo) Overrides(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]pricing.PriceOverride, error) {
	ctx = r.u.sessionCtx(ctx)
	cur, err := r.col.Find(ctx, dayRangeFilter(id, dr), byDate())
	if err != nil {
		return nil, classify("mongo overrides", err)
	}
	var docs []overrideDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("mongo overrides", err)
	}
	out := make([]pricing.PriceOverride, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r overrideRepo) Save(ctx context.Context, o pricing.PriceOverride) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newOverrideDocument(o)
	_, err := r.col.ReplaceOne(r.u.sessionCtx(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify("mongo override save", err)
}

func (r overrideRepo) Delete(ctx context.Context, id resources.ID, date time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	res, err := r.col.DeleteOne(r.u.sessionCtx(ctx), bson.M{"_id": dayID(id, date)})
	if err != nil {
		return classify("mongo override delete", err)
	}
	if res.DeletedCount == 0 {
		return pricing.ErrOverrideNotFound
	}
	return nil
}
