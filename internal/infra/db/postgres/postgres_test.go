package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/uow"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/money"
)

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func Test_Price_RoundTripsThroughJSONB(t *testing.T) {
	price := pricing.PriceBreakdown{
		Unit: pricing.UnitNight,
		Rates: []pricing.Rate{
			{Date: day(10), Price: money.Must(10000, "USD")},
			{Date: day(11), Price: money.Must(35000, "USD"), Override: true},
		},
		PartySize: 2,
		Total:     money.Must(45000, "USD"),
	}

	raw, err := encodePrice(price)
	require.NoError(t, err)
	got, err := decodePrice([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, price, got)
	assert.Contains(t, raw, `"date":"2026-07-11"`)
}

func Test_ReservationRecord_OmitsEmptyIdempotencyKey(t *testing.T) {
	r := &reservation.Reservation{
		ID:         "r-1",
		ResourceID: "villa",
		Range:      daterange.DateRange{CheckIn: day(10), CheckOut: day(12)},
		Price:      pricing.PriceBreakdown{Unit: pricing.UnitNight, Total: money.Must(0, "USD")},
		Version:    2,
	}

	rec, err := reservationRecord(r)
	require.NoError(t, err)
	assert.Nil(t, rec["idempotency_key"])
	assert.Equal(t, int64(3), rec["version"])

	r.IdempotencyKey = "checkout-1"
	rec, err = reservationRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "checkout-1", rec["idempotency_key"])
}

func Test_Overlapping_UsesHalfOpenBounds(t *testing.T) {
	dr := daterange.DateRange{CheckIn: day(10), CheckOut: day(13)}
	sql, args, err := dialect.From(tableReservations).Prepared(true).
		Select("id").
		Where(overlapWhere("villa", dr)...).
		ToSQL()
	require.NoError(t, err)

	assert.Contains(t, sql, `"status" != $2`)
	assert.Contains(t, sql, `"check_in" < $3`)
	assert.Contains(t, sql, `"check_out" > $4`)
	assert.Equal(t, []any{"villa", "cancelled", day(13), day(10)}, args)
}

func Test_LockStatement_TakesRowLock(t *testing.T) {
	sql, args, err := lockStatement("villa").ToSQL()
	require.NoError(t, err)

	assert.Contains(t, sql, `FROM "resources"`)
	assert.Contains(t, sql, "FOR UPDATE")
	assert.NotContains(t, sql, "SKIP LOCKED")
	assert.Equal(t, []any{"villa"}, args)
}

func Test_ClaimStatement_SkipsLockedRows(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	sql, args, err := claimStatement("relay-1", now).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, sql, `UPDATE "app_outbox"`)
	assert.Contains(t, sql, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, sql, "RETURNING")
	assert.Contains(t, args, "relay-1")
	assert.Contains(t, args, now.Add(-claimTimeout))
}

func Test_Classify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: codeSerializationFailure}, transient: true},
		{name: "deadlock", err: &pgconn.PgError{Code: codeDeadlockDetected}, transient: true},
		{name: "lock not available", err: &pgconn.PgError{Code: codeLockNotAvailable}, transient: true},
		{name: "unique violation", err: &pgconn.PgError{Code: codeUniqueViolation}},
		{name: "plain error", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.err)
			var transient *domainerr.TransientError
			assert.Equal(t, tc.transient, errors.As(err, &transient))
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.NoError(t, classify("op", nil))
	assert.Equal(t, context.Canceled, classify("op", context.Canceled))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: codeUniqueViolation}))
}

func Test_Stale_IsRetryable(t *testing.T) {
	err := stale("save")

	var transient *domainerr.TransientError
	require.ErrorAs(t, err, &transient)
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func Test_Unit_ReadOnlyRejectsWrites(t *testing.T) {
	u := &Unit{readOnly: true}
	ctx := context.Background()

	assert.ErrorIs(t, u.Reservations().Save(ctx, &reservation.Reservation{}), uow.ErrReadOnly)
	assert.ErrorIs(t, u.Reservations().LockLedger(ctx, resources.ID("villa")), uow.ErrReadOnly)
	assert.ErrorIs(t, u.Blocks().Delete(ctx, "villa", day(1)), uow.ErrReadOnly)
}

func Test_Factory_RequiresPool(t *testing.T) {
	_, err := Factory{}.Begin(context.Background(), uow.TxOptions{})

	assert.ErrorIs(t, err, ErrUnitOfWorkNotConfigured)
}
