package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "staybook/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// claimTimeout returns a record to the queue when its worker died after
// claiming it.
const claimTimeout = time.Minute

type unitOutbox struct {
	u *Unit
}

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	headers := record.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	rawHeaders, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	stmt := dialect.Insert(tableOutbox).Prepared(true).Rows(goqu.Record{
		"id":              record.ID,
		"name":            record.Name,
		"payload":         record.Payload,
		"occurred_at":     record.OccurredAt,
		"aggregate":       record.Aggregate,
		"headers":         string(rawHeaders),
		"state":           stateNew,
		"next_attempt_at": now,
		"created_at":      now,
	})
	_, err = exec(ctx, o.u.tx, "postgres outbox add", stmt)
	return err
}

// OutboxStore is the relay side of app_outbox. Several relays may poll the
// same table; SKIP LOCKED keeps them off each other's rows.
type OutboxStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool, now: time.Now}
}

func claimWhere(now time.Time) exp.Expression {
	return goqu.Or(
		goqu.And(
			goqu.C("state").In(stateNew, stateFailed),
			goqu.C("next_attempt_at").Lte(now),
		),
		goqu.And(
			goqu.C("state").Eq(stateClaimed),
			goqu.C("claimed_at").Lte(now.Add(-claimTimeout)),
		),
	)
}

func claimStatement(workerID string, now time.Time) *goqu.UpdateDataset {
	next := dialect.From(tableOutbox).
		Select("id").
		Where(claimWhere(now)).
		Order(goqu.C("next_attempt_at").Asc(), goqu.C("created_at").Asc()).
		Limit(1).
		ForUpdate(exp.SkipLocked)
	return dialect.Update(tableOutbox).Prepared(true).
		Set(goqu.Record{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}).
		Where(goqu.C("id").Eq(next)).
		Returning("id", "name", "payload", "occurred_at", "aggregate", "headers", "attempts")
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*appoutbox.Pending, error) {
	row, err := queryRow(ctx, s.pool, claimStatement(workerID, s.now().UTC()))
	if err != nil {
		return nil, err
	}
	var (
		p       appoutbox.Pending
		headers []byte
	)
	err = row.Scan(&p.ID, &p.Name, &p.Payload, &p.OccurredAt, &p.Aggregate, &headers, &p.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("postgres outbox claim", err)
	}
	if err := json.Unmarshal(headers, &p.Headers); err != nil {
		return nil, err
	}
	p.OccurredAt = p.OccurredAt.UTC()
	return &p, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	stmt := dialect.Update(tableOutbox).Prepared(true).
		Set(goqu.Record{"state": stateSent, "sent_at": s.now().UTC()}).
		Where(goqu.C("id").Eq(id))
	_, err := exec(ctx, s.pool, "postgres outbox sent", stmt)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	stmt := dialect.Update(tableOutbox).Prepared(true).
		Set(goqu.Record{
			"state":           stateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
			"attempts":        goqu.L("attempts + 1"),
		}).
		Where(goqu.C("id").Eq(id))
	_, err := exec(ctx, s.pool, "postgres outbox failed", stmt)
	return err
}

var _ appoutbox.Source = (*OutboxStore)(nil)
