package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/money"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func span(t *testing.T, from, to int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(day(from), day(to))
	require.NoError(t, err)
	return dr
}

func seedVilla(t *testing.T, s *Store) *resources.Resource {
	t.Helper()
	res, err := resources.NewResource(resources.Params{
		ID: "villa", Kind: resources.KindProperty, Title: "Villa", City: "Split",
		BasePrice: money.Must(10000, "EUR"), Active: true, Now: now,
	})
	require.NoError(t, err)
	unit := begin(t, s, false)
	require.NoError(t, unit.Resources().Save(context.Background(), res))
	require.NoError(t, unit.Commit(context.Background()))
	return res
}

func begin(t *testing.T, s *Store, readOnly bool) uow.UnitOfWork {
	t.Helper()
	unit, err := s.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	require.NoError(t, err)
	return unit
}

func pending(t *testing.T, res *resources.Resource, id, key string, dr daterange.DateRange) *reservation.Reservation {
	t.Helper()
	quote, err := pricing.Resolver{}.Quote(context.Background(), res, dr, 1)
	require.NoError(t, err)
	r, err := reservation.New(reservation.CreateParams{
		ID: reservation.ID(id), Resource: res, Range: dr, PartySize: 1, Price: quote,
		Payer: reservation.Payer{GuestID: "g-1"}, IdempotencyKey: key, CreatedAt: now,
	})
	require.NoError(t, err)
	return r
}

func Test_Unit_WritesVisibleOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	res := seedVilla(t, s)

	writer := begin(t, s, false)
	require.NoError(t, writer.Reservations().Save(ctx, pending(t, res, "r-1", "", span(t, 1, 3))))

	inside, err := writer.Reservations().ByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inside.Version)

	reader := begin(t, s, true)
	_, err = reader.Reservations().ByID(ctx, "r-1")
	assert.ErrorIs(t, err, domainerr.ErrNotFound)

	require.NoError(t, writer.Commit(ctx))
	got, err := reader.Reservations().ByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, got.Status)
	assert.Empty(t, got.Events())
}

func Test_Unit_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	res := seedVilla(t, s)

	unit := begin(t, s, false)
	require.NoError(t, unit.Reservations().Save(ctx, pending(t, res, "r-1", "", span(t, 1, 3))))
	require.NoError(t, unit.Blocks().Save(ctx, availability.BlockedDate{ResourceID: "villa", Date: day(5)}))
	require.NoError(t, unit.Rollback(ctx))

	check := begin(t, s, true)
	list, err := check.Reservations().Overlapping(ctx, "villa", span(t, 1, 10))
	require.NoError(t, err)
	assert.Empty(t, list)
	blocks, err := check.Blocks().Blocks(ctx, "villa", span(t, 1, 10))
	require.NoError(t, err)
	assert.Empty(t, blocks)
	assert.ErrorIs(t, unit.Commit(ctx), ErrUnitClosed)
}

func Test_Unit_ReadOnlyRejectsWrites(t *testing.T) {
	s := NewStore()
	res := seedVilla(t, s)
	unit := begin(t, s, true)

	err := unit.Reservations().Save(context.Background(), pending(t, res, "r-1", "", span(t, 1, 3)))
	assert.ErrorIs(t, err, uow.ErrReadOnly)
	assert.ErrorIs(t, unit.Reservations().LockLedger(context.Background(), "villa"), uow.ErrReadOnly)
}

func Test_Reservations_DuplicateIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	res := seedVilla(t, s)

	first := begin(t, s, false)
	require.NoError(t, first.Reservations().Save(ctx, pending(t, res, "r-1", "k-1", span(t, 1, 3))))
	require.NoError(t, first.Commit(ctx))

	second := begin(t, s, false)
	err := second.Reservations().Save(ctx, pending(t, res, "r-2", "k-1", span(t, 5, 6)))
	assert.ErrorIs(t, err, reservation.ErrDuplicate)

	found, err := second.Reservations().ByIdempotencyKey(ctx, "k-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, reservation.ID("r-1"), found.ID)

	missing, err := second.Reservations().ByIdempotencyKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func Test_Reservations_StaleVersionIsTransient(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	res := seedVilla(t, s)
	seed := begin(t, s, false)
	require.NoError(t, seed.Reservations().Save(ctx, pending(t, res, "r-1", "", span(t, 1, 3))))
	require.NoError(t, seed.Commit(ctx))

	a, b := begin(t, s, false), begin(t, s, false)
	ra, err := a.Reservations().ByID(ctx, "r-1")
	require.NoError(t, err)
	rb, err := b.Reservations().ByID(ctx, "r-1")
	require.NoError(t, err)

	require.NoError(t, ra.Confirm("pay-1", now))
	require.NoError(t, a.Reservations().Save(ctx, ra))
	require.NoError(t, rb.Cancel("guest", now))
	require.NoError(t, b.Reservations().Save(ctx, rb))

	require.NoError(t, a.Commit(ctx))
	err = b.Commit(ctx)
	assert.ErrorIs(t, err, domainerr.ErrTransient)
	assert.ErrorIs(t, err, ErrStaleVersion)

	stored, err := begin(t, s, true).Reservations().ByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func Test_Resources_StaleVersionIsTransient(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedVilla(t, s)

	a, b := begin(t, s, false), begin(t, s, false)
	ra, err := a.Resources().ByID(ctx, "villa")
	require.NoError(t, err)
	rb, err := b.Resources().ByID(ctx, "villa")
	require.NoError(t, err)

	ra.Title = "Villa Mare"
	require.NoError(t, a.Resources().Save(ctx, ra))
	rb.Deactivate(now)
	require.NoError(t, b.Resources().Save(ctx, rb))

	require.NoError(t, a.Commit(ctx))
	err = b.Commit(ctx)
	assert.ErrorIs(t, err, domainerr.ErrTransient)
	assert.ErrorIs(t, err, ErrStaleVersion)

	stored, err := begin(t, s, true).Resources().ByID(ctx, "villa")
	require.NoError(t, err)
	assert.Equal(t, "Villa Mare", stored.Title)
	assert.True(t, stored.Active)
	assert.Equal(t, int64(2), stored.Version)

	stale := begin(t, s, false)
	ra.Version = 1
	assert.ErrorIs(t, stale.Resources().Save(ctx, ra), ErrStaleVersion)
	require.NoError(t, stale.Rollback(ctx))
}

func Test_Reservations_OverlappingSkipsCancelled(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	res := seedVilla(t, s)
	unit := begin(t, s, false)
	kept := pending(t, res, "r-1", "", span(t, 1, 3))
	gone := pending(t, res, "r-2", "", span(t, 3, 5))
	require.NoError(t, gone.Cancel("x", now))
	require.NoError(t, unit.Reservations().Save(ctx, kept))
	require.NoError(t, unit.Reservations().Save(ctx, gone))
	require.NoError(t, unit.Reservations().Save(ctx, pending(t, res, "r-3", "", span(t, 10, 12))))
	require.NoError(t, unit.Commit(ctx))

	list, err := begin(t, s, true).Reservations().Overlapping(ctx, "villa", span(t, 2, 6))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, reservation.ID("r-1"), list[0].ID)
}

func Test_LockLedger_SerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedVilla(t, s)

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unit, err := s.Begin(ctx, uow.TxOptions{})
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, unit.Reservations().LockLedger(ctx, "villa"))
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, unit.Commit(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func Test_LockLedger_HonorsContext(t *testing.T) {
	s := NewStore()
	holder := begin(t, s, false)
	require.NoError(t, holder.Reservations().LockLedger(context.Background(), "villa"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	waiter := begin(t, s, false)
	err := waiter.Reservations().LockLedger(ctx, "villa")
	assert.ErrorIs(t, err, domainerr.ErrTransient)

	require.NoError(t, holder.Rollback(context.Background()))
	next := begin(t, s, false)
	require.NoError(t, next.Reservations().LockLedger(context.Background(), "villa"))
	require.NoError(t, next.Rollback(context.Background()))
}

func Test_CalendarRepos_DeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	unit := begin(t, s, false)

	assert.ErrorIs(t, unit.Blocks().Delete(ctx, "villa", day(1)), availability.ErrBlockNotFound)
	assert.ErrorIs(t, unit.PriceOverrides().Delete(ctx, "villa", day(1)), pricing.ErrOverrideNotFound)

	require.NoError(t, unit.PriceOverrides().Save(ctx, pricing.PriceOverride{ResourceID: "villa", Date: day(2), Price: money.Must(5000, "EUR")}))
	require.NoError(t, unit.PriceOverrides().Delete(ctx, "villa", day(2)))
	assert.ErrorIs(t, unit.PriceOverrides().Delete(ctx, "villa", day(2)), pricing.ErrOverrideNotFound)
}

func Test_Outbox_ClaimAndMark(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.now = func() time.Time { return now }
	unit := begin(t, s, false)
	require.NoError(t, unit.Outbox().Add(ctx, outbox.EventRecord{ID: "e-1", Name: "reservation.requested"}))

	none, err := s.Claim(ctx, "w")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, unit.Commit(ctx))
	claimed, err := s.Claim(ctx, "w")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "e-1", claimed.ID)

	require.NoError(t, s.MarkFailed(ctx, "e-1", now.Add(-time.Second), "broker down"))
	again, err := s.Claim(ctx, "w")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, again.Attempts)

	require.NoError(t, s.MarkSent(ctx, "e-1"))
	done, err := s.Claim(ctx, "w")
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Len(t, s.Records(), 1)
}

func Test_IdempotencyStore_Expires(t *testing.T) {
	ctx := context.Background()
	clock := now
	store := NewIdempotencyStore()
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k", Payload: []byte(`{}`)}, time.Hour))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock = clock.Add(time.Hour)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Inbox_MarkThenProcessed(t *testing.T) {
	ctx := context.Background()
	in := NewInbox()
	done, err := in.Processed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, in.Mark(ctx, "evt-1"))
	require.NoError(t, in.Mark(ctx, "evt-1"))
	done, err = in.Processed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = in.Processed(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, done)
}
