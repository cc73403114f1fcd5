package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	jsoniter "github.com/json-iterator/go"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/money"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var resourceColumns = []any{
	"id", "kind", "title", "city", "capacity", "base_amount", "currency",
	"slots", "active", "version", "created_at", "updated_at",
}

type resourceRepo struct {
	u *Unit
}

func scanResource(row pgx.Row) (*resources.Resource, error) {
	var (
		r        resources.Resource
		id       string
		kind     string
		amount   int64
		currency string
		slots    []byte
	)
	err := row.Scan(&id, &kind, &r.Title, &r.City, &r.Capacity, &amount, &currency,
		&slots, &r.Active, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ID = resources.ID(id)
	r.Kind = resources.Kind(kind)
	r.BasePrice = money.Money{Amount: amount, Currency: currency}
	if err := json.Unmarshal(slots, &r.Slots); err != nil {
		return nil, err
	}
	if len(r.Slots) == 0 {
		r.Slots = nil
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func (r resourceRepo) ByID(ctx context.Context, id resources.ID) (*resources.Resource, error) {
	stmt := dialect.From(tableResources).Prepared(true).
		Select(resourceColumns...).
		Where(goqu.C("id").Eq(string(id)))
	row, err := queryRow(ctx, r.u.tx, stmt)
	if err != nil {
		return nil, err
	}
	res, err := scanResource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.NotFound("resource", string(id))
	}
	return res, classify("postgres resource by id", err)
}

func resourceRecord(res *resources.Resource) (goqu.Record, error) {
	slots := res.Slots
	if slots == nil {
		slots = []string{}
	}
	rawSlots, err := json.Marshal(slots)
	if err != nil {
		return nil, err
	}
	return goqu.Record{
		"id":          string(res.ID),
		"kind":        string(res.Kind),
		"title":       res.Title,
		"city":        res.City,
		"city_lower":  strings.ToLower(strings.TrimSpace(res.City)),
		"capacity":    res.Capacity,
		"base_amount": res.BasePrice.Amount,
		"currency":    res.BasePrice.Currency,
		"slots":       string(rawSlots),
		"active":      res.Active,
		"version":     res.Version + 1,
		"created_at":  res.CreatedAt,
		"updated_at":  res.UpdatedAt,
	}, nil
}

// Save inserts when Version is zero and otherwise updates the row only if the
// stored version still matches.
func (r resourceRepo) Save(ctx context.Context, res *resources.Resource) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	rec, err := resourceRecord(res)
	if err != nil {
		return err
	}
	var stmt statement
	if res.Version == 0 {
		stmt = dialect.Insert(tableResources).Prepared(true).Rows(rec)
	} else {
		delete(rec, "id")
		delete(rec, "created_at")
		stmt = dialect.Update(tableResources).Prepared(true).
			Set(rec).
			Where(goqu.C("id").Eq(string(res.ID)), goqu.C("version").Eq(res.Version))
	}
	tag, err := exec(ctx, r.u.tx, "postgres resource save", stmt)
	if err != nil {
		if isUniqueViolation(err) {
			return stale("postgres resource save")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return stale("postgres resource save")
	}
	res.Version++
	return nil
}

func searchWhere(p resources.SearchParams) []exp.Expression {
	var where []exp.Expression
	if p.OnlyActive {
		where = append(where, goqu.C("active").IsTrue())
	}
	if p.Kind != "" {
		where = append(where, goqu.C("kind").Eq(string(p.Kind)))
	}
	if p.City != "" {
		where = append(where, goqu.C("city_lower").Eq(p.City))
	}
	if p.MinCapacity > 0 {
		where = append(where, goqu.C("capacity").Gte(p.MinCapacity))
	}
	return where
}

func (r resourceRepo) Search(ctx context.Context, params resources.SearchParams) (resources.SearchResult, error) {
	p := params.Normalized()
	where := searchWhere(p)

	countStmt := dialect.From(tableResources).Prepared(true).Select(goqu.COUNT(goqu.Star())).Where(where...)
	row, err := queryRow(ctx, r.u.tx, countStmt)
	if err != nil {
		return resources.SearchResult{}, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return resources.SearchResult{}, classify("postgres resource count", err)
	}

	pageStmt := dialect.From(tableResources).Prepared(true).
		Select(resourceColumns...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Limit(uint(p.Limit)).
		Offset(uint(p.Offset))
	rows, err := query(ctx, r.u.tx, "postgres resource search", pageStmt)
	if err != nil {
		return resources.SearchResult{}, err
	}
	defer rows.Close()
	items := make([]*resources.Resource, 0, p.Limit)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return resources.SearchResult{}, classify("postgres resource search", err)
		}
		items = append(items, res)
	}
	if err := rows.Err(); err != nil {
		return resources.SearchResult{}, classify("postgres resource search", err)
	}
	return resources.SearchResult{Items: items, Total: total}, nil
}
