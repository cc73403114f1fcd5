package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/money"
)

var reservationColumns = []any{
	"id", "resource_id", "kind", "check_in", "check_out", "slot", "party_size", "status",
	"price", "guest_id", "payer_name", "payer_email", "payer_phone", "guest_checkout",
	"idempotency_key", "payment_ref", "cancel_reason", "created_at", "updated_at", "version",
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type rateJSON struct {
	Date     string    `json:"date"`
	Price    moneyJSON `json:"price"`
	Override bool      `json:"override,omitempty"`
}

type priceJSON struct {
	Unit      string     `json:"unit"`
	Rates     []rateJSON `json:"rates"`
	PartySize int        `json:"party_size"`
	Total     moneyJSON  `json:"total"`
}

func encodePrice(p pricing.PriceBreakdown) (string, error) {
	doc := priceJSON{
		Unit:      string(p.Unit),
		Rates:     make([]rateJSON, 0, len(p.Rates)),
		PartySize: p.PartySize,
		Total:     moneyJSON{Amount: p.Total.Amount, Currency: p.Total.Currency},
	}
	for _, rate := range p.Rates {
		doc.Rates = append(doc.Rates, rateJSON{
			Date:     daterange.Key(rate.Date),
			Price:    moneyJSON{Amount: rate.Price.Amount, Currency: rate.Price.Currency},
			Override: rate.Override,
		})
	}
	raw, err := json.Marshal(doc)
	return string(raw), err
}

func decodePrice(raw []byte) (pricing.PriceBreakdown, error) {
	var doc priceJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return pricing.PriceBreakdown{}, err
	}
	out := pricing.PriceBreakdown{
		Unit:      pricing.Unit(doc.Unit),
		Rates:     make([]pricing.Rate, 0, len(doc.Rates)),
		PartySize: doc.PartySize,
		Total:     money.Money{Amount: doc.Total.Amount, Currency: doc.Total.Currency},
	}
	for _, rate := range doc.Rates {
		date, err := time.Parse(time.DateOnly, rate.Date)
		if err != nil {
			return pricing.PriceBreakdown{}, err
		}
		out.Rates = append(out.Rates, pricing.Rate{
			Date:     date.UTC(),
			Price:    money.Money{Amount: rate.Price.Amount, Currency: rate.Price.Currency},
			Override: rate.Override,
		})
	}
	return out, nil
}

func scanReservation(row pgx.Row) (*reservation.Reservation, error) {
	var (
		r                    reservation.Reservation
		id, resourceID, kind string
		status               string
		checkIn, checkOut    time.Time
		price                []byte
		idempotencyKey       *string
	)
	err := row.Scan(&id, &resourceID, &kind, &checkIn, &checkOut, &r.Slot, &r.PartySize, &status,
		&price, &r.Payer.GuestID, &r.Payer.Name, &r.Payer.Email, &r.Payer.Phone, &r.Payer.Guest,
		&idempotencyKey, &r.PaymentRef, &r.CancelReason, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	if err != nil {
		return nil, err
	}
	r.ID = reservation.ID(id)
	r.ResourceID = resources.ID(resourceID)
	r.Kind = resources.Kind(kind)
	r.Status = reservation.Status(status)
	r.Range = daterange.DateRange{CheckIn: daterange.Day(checkIn), CheckOut: daterange.Day(checkOut)}
	if idempotencyKey != nil {
		r.IdempotencyKey = *idempotencyKey
	}
	if r.Price, err = decodePrice(price); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func reservationRecord(r *reservation.Reservation) (goqu.Record, error) {
	price, err := encodePrice(r.Price)
	if err != nil {
		return nil, err
	}
	var key any
	if r.IdempotencyKey != "" {
		key = r.IdempotencyKey
	}
	return goqu.Record{
		"id":              string(r.ID),
		"resource_id":     string(r.ResourceID),
		"kind":            string(r.Kind),
		"check_in":        r.Range.CheckIn,
		"check_out":       r.Range.CheckOut,
		"slot":            r.Slot,
		"party_size":      r.PartySize,
		"status":          string(r.Status),
		"price":           price,
		"guest_id":        r.Payer.GuestID,
		"payer_name":      r.Payer.Name,
		"payer_email":     r.Payer.Email,
		"payer_phone":     r.Payer.Phone,
		"guest_checkout":  r.Payer.Guest,
		"idempotency_key": key,
		"payment_ref":     r.PaymentRef,
		"cancel_reason":   r.CancelReason,
		"created_at":      r.CreatedAt,
		"updated_at":      r.UpdatedAt,
		"version":         r.Version + 1,
	}, nil
}

type reservationRepo struct {
	u *Unit
}

func (r reservationRepo) ByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	stmt := dialect.From(tableReservations).Prepared(true).
		Select(reservationColumns...).
		Where(goqu.C("id").Eq(string(id)))
	res, err := r.one(ctx, "postgres reservation by id", stmt)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domainerr.NotFound("reservation", string(id))
	}
	return res, nil
}

// Save inserts a new reservation or updates it when the stored version still
// matches. A clash on the idempotency key index is reported as
// reservation.ErrDuplicate.
func (r reservationRepo) Save(ctx context.Context, res *reservation.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	rec, err := reservationRecord(res)
	if err != nil {
		return err
	}
	if res.Version == 0 {
		stmt := dialect.Insert(tableReservations).Prepared(true).Rows(rec)
		if _, err := exec(ctx, r.u.tx, "postgres reservation insert", stmt); err != nil {
			if isUniqueViolation(err) {
				return reservation.ErrDuplicate
			}
			return err
		}
		res.Version++
		return nil
	}
	delete(rec, "id")
	delete(rec, "created_at")
	stmt := dialect.Update(tableReservations).Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(string(res.ID)), goqu.C("version").Eq(res.Version))
	tag, err := exec(ctx, r.u.tx, "postgres reservation save", stmt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return stale("postgres reservation save")
	}
	res.Version++
	return nil
}

func overlapWhere(id resources.ID, dr daterange.DateRange) []exp.Expression {
	return []exp.Expression{
		goqu.C("resource_id").Eq(string(id)),
		goqu.C("status").Neq(string(reservation.StatusCancelled)),
		goqu.C("check_in").Lt(dr.CheckOut),
		goqu.C("check_out").Gt(dr.CheckIn),
	}
}

func (r reservationRepo) Overlapping(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]*reservation.Reservation, error) {
	stmt := dialect.From(tableReservations).Prepared(true).
		Select(reservationColumns...).
		Where(overlapWhere(id, dr)...).
		Order(goqu.C("check_in").Asc(), goqu.C("id").Asc())
	return r.list(ctx, "postgres reservation overlapping", stmt)
}

func (r reservationRepo) ByIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	stmt := dialect.From(tableReservations).Prepared(true).
		Select(reservationColumns...).
		Where(goqu.C("idempotency_key").Eq(key))
	return r.one(ctx, "postgres reservation by key", stmt)
}

func (r reservationRepo) ListByGuest(ctx context.Context, guestID string) ([]*reservation.Reservation, error) {
	stmt := dialect.From(tableReservations).Prepared(true).
		Select(reservationColumns...).
		Where(goqu.C("guest_id").Eq(guestID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())
	return r.list(ctx, "postgres reservation list", stmt)
}

// LockLedger takes the resource row lock. Concurrent admissions on the same
// resource wait here until the holder commits or rolls back.
func (r reservationRepo) LockLedger(ctx context.Context, id resources.ID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	stmt := lockStatement(id)
	row, err := queryRow(ctx, r.u.tx, stmt)
	if err != nil {
		return err
	}
	var locked string
	if err := row.Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainerr.NotFound("resource", string(id))
		}
		return classify("postgres ledger lock", err)
	}
	return nil
}

func lockStatement(id resources.ID) *goqu.SelectDataset {
	return dialect.From(tableResources).Prepared(true).
		Select("id").
		Where(goqu.C("id").Eq(string(id))).
		ForUpdate(exp.Wait)
}

func (r reservationRepo) one(ctx context.Context, op string, stmt statement) (*reservation.Reservation, error) {
	row, err := queryRow(ctx, r.u.tx, stmt)
	if err != nil {
		return nil, err
	}
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}

func (r reservationRepo) list(ctx context.Context, op string, stmt statement) ([]*reservation.Reservation, error) {
	rows, err := query(ctx, r.u.tx, op, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*reservation.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}
