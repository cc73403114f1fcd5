package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/app/middleware"
)

// IdempotencyStore keeps command results in app_idempotency. Expired rows
// are ignored on read and overwritten on the next save.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	stmt := dialect.From(tableIdempotency).Prepared(true).
		Select("fingerprint", "payload", "error_kind", "error_message", "error_detail", "occurred_at", "expires_at").
		Where(goqu.C("key").Eq(key))
	row, err := queryRow(ctx, s.pool, stmt)
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	rec := middleware.IdempotencyRecord{Key: key}
	var expiresAt *time.Time
	err = row.Scan(&rec.Fingerprint, &rec.Payload, &rec.ErrorKind, &rec.ErrorMessage, &rec.ErrorDetail, &rec.OccurredAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, classify("postgres idempotency get", err)
	}
	if expiresAt != nil && !s.now().Before(*expiresAt) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		at := s.now().UTC().Add(ttl)
		expiresAt = &at
	}
	stmt := dialect.Insert(tableIdempotency).Prepared(true).
		Rows(goqu.Record{
			"key":           rec.Key,
			"fingerprint":   rec.Fingerprint,
			"payload":       rec.Payload,
			"error_kind":    rec.ErrorKind,
			"error_message": rec.ErrorMessage,
			"error_detail":  rec.ErrorDetail,
			"occurred_at":   rec.OccurredAt,
			"expires_at":    expiresAt,
		}).
		OnConflict(goqu.DoUpdate("key", goqu.Record{
			"fingerprint":   goqu.L("EXCLUDED.fingerprint"),
			"payload":       goqu.L("EXCLUDED.payload"),
			"error_kind":    goqu.L("EXCLUDED.error_kind"),
			"error_message": goqu.L("EXCLUDED.error_message"),
			"error_detail":  goqu.L("EXCLUDED.error_detail"),
			"occurred_at":   goqu.L("EXCLUDED.occurred_at"),
			"expires_at":    goqu.L("EXCLUDED.expires_at"),
		}))
	_, err := exec(ctx, s.pool, "postgres idempotency save", stmt)
	return err
}

// Inbox dedupes consumed events on the (consumer, event_id) key.
type Inbox struct {
	pool     *pgxpool.Pool
	consumer string
}

func NewInbox(pool *pgxpool.Pool, consumer string) *Inbox {
	return &Inbox{pool: pool, consumer: consumer}
}

func (s *Inbox) Processed(ctx context.Context, eventID string) (bool, error) {
	stmt := dialect.From(tableInbox).Prepared(true).
		Select(goqu.L("1")).
		Where(goqu.C("consumer").Eq(s.consumer), goqu.C("event_id").Eq(eventID))
	row, err := queryRow(ctx, s.pool, stmt)
	if err != nil {
		return false, err
	}
	var one int
	err = row.Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify("postgres inbox processed", err)
	}
	return true, nil
}

func (s *Inbox) Mark(ctx context.Context, eventID string) error {
	stmt := dialect.Insert(tableInbox).Prepared(true).
		Rows(goqu.Record{"consumer": s.consumer, "event_id": eventID, "received_at": time.Now().UTC()}).
		OnConflict(goqu.DoNothing())
	_, err := exec(ctx, s.pool, "postgres inbox mark", stmt)
	return err
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
