package postgres

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func dayRangeWhere(id resources.ID, dr daterange.DateRange) []exp.Expression {
	return []exp.Expression{
		goqu.C("resource_id").Eq(string(id)),
		goqu.C("day").Gte(dr.CheckIn),
		goqu.C("day").Lt(dr.CheckOut),
	}
}

func dayWhere(id resources.ID, date time.Time) []exp.Expression {
	return []exp.Expression{
		goqu.C("resource_id").Eq(string(id)),
		goqu.C("day").Eq(daterange.Day(date)),
	}
}

type blockRepo struct {
	u *Unit
}

func (r blockRepo) Blocks(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]availability.BlockedDate, error) {
	stmt := dialect.From(tableBlocks).Prepared(true).
		Select("day", "reason", "created_at").
		Where(dayRangeWhere(id, dr)...).
		Order(goqu.C("day").Asc())
	rows, err := query(ctx, r.u.tx, "postgres blocks", stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []availability.BlockedDate
	for rows.Next() {
		b := availability.BlockedDate{ResourceID: id}
		if err := rows.Scan(&b.Date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, classify("postgres blocks", err)
		}
		b.Date = daterange.Day(b.Date)
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, b)
	}
	return out, classify("postgres blocks", rows.Err())
}

func (r blockRepo) Save(ctx context.Context, block availability.BlockedDate) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stmt := dialect.Insert(tableBlocks).Prepared(true).
		Rows(goqu.Record{
			"resource_id": string(block.ResourceID),
			"day":         daterange.Day(block.Date),
			"reason":      block.Reason,
			"created_at":  block.CreatedAt,
		}).
		OnConflict(goqu.DoUpdate("resource_id, day", goqu.Record{
			"reason":     goqu.L("EXCLUDED.reason"),
			"created_at": goqu.L("EXCLUDED.created_at"),
		}))
	_, err := exec(ctx, r.u.tx, "postgres block save", stmt)
	return err
}

func (r blockRepo) Delete(ctx context.Context, id resources.ID, date time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stmt := dialect.Delete(tableBlocks).Prepared(true).Where(dayWhere(id, date)...)
	tag, err := exec(ctx, r.u.tx, "postgres block delete", stmt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return availability.ErrBlockNotFound
	}
	return nil
}

type overrideRepo struct {
	u *Unit
}

func (r overrideRepo) Overrides(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]pricing.PriceOverride, error) {
	stmt := dialect.From(tableOverrides).Prepared(true).
		Select("day", "amount", "currency", "updated_at").
		Where(dayRangeWhere(id, dr)...).
		Order(goqu.C("day").Asc())
	rows, err := query(ctx, r.u.tx, "postgres overrides", stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pricing.PriceOverride
	for rows.Next() {
		var (
			o        = pricing.PriceOverride{ResourceID: id}
			amount   int64
			currency string
		)
		if err := rows.Scan(&o.Date, &amount, &currency, &o.UpdatedAt); err != nil {
			return nil, classify("postgres overrides", err)
		}
		o.Date = daterange.Day(o.Date)
		o.Price = money.Money{Amount: amount, Currency: currency}
		o.UpdatedAt = o.UpdatedAt.UTC()
		out = append(out, o)
	}
	return out, classify("postgres overrides", rows.Err())
}

func (r overrideRepo) Save(ctx context.Context, o pricing.PriceOverride) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stmt := dialect.Insert(tableOverrides).Prepared(true).
		Rows(goqu.Record{
			"resource_id": string(o.ResourceID),
			"day":         daterange.Day(o.Date),
			"amount":      o.Price.Amount,
			"currency":    o.Price.Currency,
			"updated_at":  o.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("resource_id, day", goqu.Record{
			"amount":     goqu.L("EXCLUDED.amount"),
			"currency":   goqu.L("EXCLUDED.currency"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		}))
	_, err := exec(ctx, r.u.tx, "postgres override save", stmt)
	return err
}

func (r overrideRepo) Delete(ctx context.Context, id resources.ID, date time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stmt := dialect.Delete(tableOverrides).Prepared(true).Where(dayWhere(id, date)...)
	tag, err := exec(ctx, r.u.tx, "postgres override delete", stmt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pricing.ErrOverrideNotFound
	}
	return nil
}
