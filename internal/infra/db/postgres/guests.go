package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"staybook/internal/domain/guest"
	"staybook/internal/domain/shared/domainerr"
)

type guestRepo struct {
	u *Unit
}

func (r guestRepo) ByEmail(ctx context.Context, email string) (*guest.Guest, error) {
	normalized, err := guest.NormalizeEmail(email)
	if err != nil {
		return nil, nil
	}
	stmt := dialect.From(tableGuests).Prepared(true).
		Select("id", "email", "name", "phone", "created_at", "updated_at").
		Where(goqu.C("email").Eq(normalized))
	row, err := queryRow(ctx, r.u.tx, stmt)
	if err != nil {
		return nil, err
	}
	var (
		g  guest.Guest
		id string
	)
	if err := row.Scan(&id, &g.Email, &g.Name, &g.Phone, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("postgres guest by email", err)
	}
	g.ID = guest.ID(id)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}

// Save upserts by id. Two checkouts racing to create the same email clash on
// the unique index and the loser is retried.
func (r guestRepo) Save(ctx context.Context, g *guest.Guest) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stmt := dialect.Insert(tableGuests).Prepared(true).
		Rows(goqu.Record{
			"id":         string(g.ID),
			"email":      g.Email,
			"name":       g.Name,
			"phone":      g.Phone,
			"created_at": g.CreatedAt,
			"updated_at": g.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"name":       goqu.L("EXCLUDED.name"),
			"phone":      goqu.L("EXCLUDED.phone"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		}))
	_, err := exec(ctx, r.u.tx, "postgres guest save", stmt)
	if isUniqueViolation(err) {
		return domainerr.Transient("postgres guest save", err)
	}
	return err
}
