package registry_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/admin"
	"staybook/internal/app/handlers/availability"
	"staybook/internal/app/handlers/reservations"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/registry"
	"staybook/internal/app/uow"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validation"
)

var today = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

type harness struct {
	store *memory.Store
	buses registry.Buses
	logs  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logs := &bytes.Buffer{}
	store := memory.NewStore()
	buses := registry.Build(registry.Deps{
		Factory:        store,
		Idempotency:    memory.NewIdempotencyStore(),
		Validator:      validation.New(),
		Logger:         slog.New(slog.NewJSONHandler(logs, nil)),
		IdempotencyTTL: time.Hour,
		MaxDays:        366,
		Retry:          []middleware.RetryOption{middleware.WithBaseDelay(time.Millisecond)},
		Clock:          func() time.Time { return today },
	})
	h := &harness{store: store, buses: buses, logs: logs}
	h.upsert(t, admin.UpsertResourceCommand{ID: "villa", Kind: "property", Title: "Villa", City: "Split", BasePrice: 10000, Currency: "USD", Active: true})
	h.upsert(t, admin.UpsertResourceCommand{ID: "loft", Kind: "property", Title: "Loft", City: "Split", BasePrice: 8000, Currency: "USD", Active: true})
	h.upsert(t, admin.UpsertResourceCommand{ID: "kayak", Kind: "activity", Title: "Kayak tour", City: "Split", Capacity: 6, BasePrice: 2500, Currency: "USD", Active: true})
	return h
}

func as(id string, roles ...policies.Role) context.Context {
	return policies.WithPrincipal(context.Background(), policies.Principal{ID: id, Roles: roles})
}

func adminCtx() context.Context {
	return as("ops", policies.RoleAdmin)
}

func (h *harness) upsert(t *testing.T, cmd admin.UpsertResourceCommand) {
	t.Helper()
	_, err := commands.Dispatch[admin.UpsertResourceCommand, dto.Resource](adminCtx(), h.buses.Commands, cmd)
	require.NoError(t, err)
}

func (h *harness) commit(ctx context.Context, cmd reservations.CommitCommand) (dto.ReservationResult, error) {
	return commands.Dispatch[reservations.CommitCommand, dto.ReservationResult](ctx, h.buses.Commands, cmd)
}

func booking(guestID, resourceID string, in, out, party int) reservations.CommitCommand {
	return reservations.CommitCommand{
		ResourceID: resourceID,
		CheckIn:    day(in),
		CheckOut:   day(out),
		PartySize:  party,
		GuestID:    guestID,
	}
}

func Test_Commit_LastUnitRaceHasOneWinner(t *testing.T) {
	h := newHarness(t)
	const contenders = 16

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			guest := fmt.Sprintf("guest-%d", i)
			cmd := booking(guest, "villa", 10, 13, 1)
			cmd.RequestKey = "key-" + guest
			_, errs[i] = h.commit(as(guest), cmd)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, domainerr.ErrConflict)
	}
	assert.Equal(t, 1, winners)
	assert.Contains(t, h.logs.String(), "overbooking prevented")

	window, err := queries.Ask[availability.WindowQuery, dto.Window](context.Background(), h.buses.Queries,
		availability.WindowQuery{ResourceID: "villa", From: day(10), To: day(13), PartySize: 1})
	require.NoError(t, err)
	for _, d := range window.Days {
		assert.False(t, d.Available, d.Date)
		assert.Equal(t, 0, d.RemainingCapacity, d.Date)
	}
}

func Test_Commit_RandomizedLoadNeverExceedsCapacity(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(7))
	type request struct {
		day   int
		party int
	}
	requests := make([]request, 120)
	for i := range requests {
		requests[i] = request{day: 1 + rng.Intn(5), party: 1 + rng.Intn(4)}
	}

	var mu sync.Mutex
	admitted := map[int]int{}
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req request) {
			defer wg.Done()
			guest := fmt.Sprintf("g-%d", i)
			_, err := h.commit(as(guest), booking(guest, "kayak", req.day, req.day+1, req.party))
			if err != nil {
				assert.ErrorIs(t, err, domainerr.ErrConflict)
				return
			}
			mu.Lock()
			admitted[req.day] += req.party
			mu.Unlock()
		}(i, req)
	}
	wg.Wait()

	window, err := queries.Ask[availability.WindowQuery, dto.Window](context.Background(), h.buses.Queries,
		availability.WindowQuery{ResourceID: "kayak", From: day(1), To: day(6), PartySize: 1})
	require.NoError(t, err)
	require.Len(t, window.Days, 5)
	for i, d := range window.Days {
		booked := admitted[i+1]
		assert.LessOrEqual(t, booked, 6, d.Date)
		assert.Equal(t, 6-booked, d.RemainingCapacity, d.Date)
	}
}

func Test_Commit_MultiNightIsAtomic(t *testing.T) {
	h := newHarness(t)
	_, err := commands.Dispatch[admin.AddBlocksCommand, dto.DateRangeChange](adminCtx(), h.buses.Commands,
		admin.AddBlocksCommand{ResourceID: "villa", From: day(21), To: day(22), Reason: "maintenance"})
	require.NoError(t, err)

	_, err = h.commit(as("ann"), booking("ann", "villa", 20, 23, 1))

	var conflict *domainerr.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, domainerr.ReasonBlocked, conflict.Reason)
	assert.Equal(t, day(21), conflict.Date)
	assert.Equal(t, "maintenance", conflict.BlockReason)

	mine, err := queries.Ask[reservations.ListMineQuery, dto.ReservationCollection](as("ann"), h.buses.Queries, reservations.ListMineQuery{GuestID: "ann"})
	require.NoError(t, err)
	assert.Empty(t, mine.Items)

	window, err := queries.Ask[availability.WindowQuery, dto.Window](context.Background(), h.buses.Queries,
		availability.WindowQuery{ResourceID: "villa", From: day(20), To: day(23), PartySize: 1})
	require.NoError(t, err)
	assert.True(t, window.Days[0].Available)
	assert.False(t, window.Days[1].Available)
	assert.True(t, window.Days[2].Available)
}

func Test_Commit_PriceSumsOverrides(t *testing.T) {
	h := newHarness(t)
	_, err := commands.Dispatch[admin.SetPricesCommand, dto.DateRangeChange](adminCtx(), h.buses.Commands,
		admin.SetPricesCommand{ResourceID: "villa", From: day(2), To: day(3), Amount: 15000, Currency: "USD"})
	require.NoError(t, err)

	res, err := h.commit(as("ann"), booking("ann", "villa", 1, 4, 1))

	require.NoError(t, err)
	assert.Equal(t, int64(35000), res.Reservation.Price.Total.Amount)
	require.Len(t, res.Reservation.Price.Rates, 3)
	assert.True(t, res.Reservation.Price.Rates[1].Override)
	assert.Equal(t, "pending", res.Reservation.Status)
}

func Test_Commit_CheckoutDayIsFree(t *testing.T) {
	h := newHarness(t)
	_, err := h.commit(as("ann"), booking("ann", "villa", 1, 4, 1))
	require.NoError(t, err)
	_, err = h.commit(as("bob"), booking("bob", "villa", 4, 6, 1))
	require.NoError(t, err)
	_, err = h.commit(as("cid"), booking("cid", "villa", 3, 5, 1))
	assert.ErrorIs(t, err, domainerr.ErrConflict)
}

func Test_Commit_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	cmd := booking("ann", "villa", 5, 7, 1)
	cmd.RequestKey = "checkout-1"

	first, err := h.commit(as("ann"), cmd)
	require.NoError(t, err)
	second, err := h.commit(as("ann"), cmd)
	require.NoError(t, err)
	assert.Equal(t, first.Reservation.ID, second.Reservation.ID)

	cmd.PartySize = 2
	_, err = h.commit(as("ann"), cmd)
	assert.ErrorIs(t, err, domainerr.ErrValidation)
	assert.ErrorIs(t, err, middleware.ErrKeyReused)

	mine, err := queries.Ask[reservations.ListMineQuery, dto.ReservationCollection](as("ann"), h.buses.Queries, reservations.ListMineQuery{GuestID: "ann"})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
}

func Test_Commit_RejectsBadInput(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		cmd  reservations.CommitCommand
	}{
		{name: "zero party", cmd: booking("ann", "villa", 1, 2, 0)},
		{name: "reversed range", cmd: booking("ann", "villa", 5, 2, 1)},
		{name: "empty range", cmd: booking("ann", "villa", 5, 5, 1)},
		{name: "past check-in", cmd: reservations.CommitCommand{ResourceID: "villa", CheckIn: today.AddDate(0, 0, -3), CheckOut: today, PartySize: 1, GuestID: "ann"}},
		{name: "activity spans two days", cmd: booking("ann", "kayak", 1, 3, 1)},
		{name: "property slot", cmd: reservations.CommitCommand{ResourceID: "villa", CheckIn: day(1), CheckOut: day(2), Slot: "10:00", PartySize: 1, GuestID: "ann"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.commit(as("ann"), tc.cmd)
			assert.ErrorIs(t, err, domainerr.ErrValidation)
			assert.NotErrorIs(t, err, domainerr.ErrConflict)
		})
	}

	_, err := h.commit(as("ann"), booking("ann", "castle", 1, 2, 1))
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
}

func Test_Commit_PartyAboveCapacityMatchesCheck(t *testing.T) {
	h := newHarness(t)

	check, err := queries.Ask[availability.CheckQuery, dto.AvailabilityCheck](context.Background(), h.buses.Queries,
		availability.CheckQuery{ResourceID: "kayak", CheckIn: day(1), CheckOut: day(2), PartySize: 7})
	require.NoError(t, err)
	assert.False(t, check.Available)
	require.NotNil(t, check.Conflict)
	assert.Equal(t, string(domainerr.ReasonAtCapacity), check.Conflict.Reason)

	_, err = h.commit(as("ann"), booking("ann", "kayak", 1, 2, 7))
	var conflict *domainerr.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.NotErrorIs(t, err, domainerr.ErrValidation)
	assert.Equal(t, domainerr.ReasonAtCapacity, conflict.Reason)
	assert.Equal(t, check.Conflict.Date, conflict.Date.Format(time.DateOnly))
	assert.Equal(t, check.Conflict.Remaining, conflict.Remaining)
}

func Test_UpsertResource_KeepsBookedLoad(t *testing.T) {
	h := newHarness(t)
	_, err := h.commit(as("ann"), booking("ann", "kayak", 3, 4, 5))
	require.NoError(t, err)
	upsert := func(capacity int, slots ...string) error {
		_, err := commands.Dispatch[admin.UpsertResourceCommand, dto.Resource](adminCtx(), h.buses.Commands, admin.UpsertResourceCommand{
			ID: "kayak", Kind: "activity", Title: "Kayak tour", City: "Split", Capacity: capacity, Slots: slots, BasePrice: 2500, Currency: "USD", Active: true,
		})
		return err
	}

	err = upsert(2)
	var conflict *domainerr.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domainerr.ReasonAtCapacity, conflict.Reason)
	assert.Equal(t, day(3), conflict.Date)
	assert.Equal(t, 5, conflict.Requested)
	assert.Contains(t, h.logs.String(), "resource change rejected")

	err = upsert(6, "09:00")
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	window, err := queries.Ask[availability.WindowQuery, dto.Window](context.Background(), h.buses.Queries,
		availability.WindowQuery{ResourceID: "kayak", From: day(3), To: day(4), PartySize: 1})
	require.NoError(t, err)
	require.Len(t, window.Days, 1)
	assert.Equal(t, 1, window.Days[0].RemainingCapacity)

	require.NoError(t, upsert(5))
	_, err = h.commit(as("bob"), booking("bob", "kayak", 3, 4, 1))
	assert.ErrorIs(t, err, domainerr.ErrConflict)
}

func Test_Commit_Authorization(t *testing.T) {
	h := newHarness(t)

	_, err := h.commit(context.Background(), booking("ann", "villa", 1, 2, 1))
	assert.ErrorIs(t, err, domainerr.ErrForbidden)

	_, err = h.commit(as("mallory"), booking("ann", "villa", 1, 2, 1))
	assert.ErrorIs(t, err, domainerr.ErrForbidden)

	_, err = commands.Dispatch[admin.AddBlocksCommand, dto.DateRangeChange](as("ann", policies.RoleGuest), h.buses.Commands,
		admin.AddBlocksCommand{ResourceID: "villa", From: day(1), To: day(2)})
	assert.ErrorIs(t, err, domainerr.ErrForbidden)
}

func Test_GuestCommit_ReusesGuestByEmail(t *testing.T) {
	h := newHarness(t)
	cmd := reservations.GuestCommitCommand{
		ResourceID: "kayak", CheckIn: day(3), CheckOut: day(4), PartySize: 2,
		Name: "Jane", Email: "Jane@Example.com",
	}
	first, err := commands.Dispatch[reservations.GuestCommitCommand, dto.ReservationResult](context.Background(), h.buses.Commands, cmd)
	require.NoError(t, err)

	cmd.Email = "jane@example.com"
	cmd.Phone = "+385"
	second, err := commands.Dispatch[reservations.GuestCommitCommand, dto.ReservationResult](context.Background(), h.buses.Commands, cmd)
	require.NoError(t, err)

	assert.NotEqual(t, first.Reservation.ID, second.Reservation.ID)
	assert.Equal(t, first.Reservation.GuestID, second.Reservation.GuestID)
	assert.True(t, second.Reservation.GuestCheck)
}

func Test_Lifecycle_ConfirmCancelReleasesCapacity(t *testing.T) {
	h := newHarness(t)
	booked, err := h.commit(as("ann"), booking("ann", "villa", 8, 10, 1))
	require.NoError(t, err)
	id := booked.Reservation.ID

	payments := as("psp", policies.RolePayments)
	confirmed, err := commands.Dispatch[reservations.ConfirmCommand, dto.Reservation](payments, h.buses.Commands,
		reservations.ConfirmCommand{ReservationID: id, PaymentRef: "pay-77"})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Status)

	again, err := commands.Dispatch[reservations.ConfirmCommand, dto.Reservation](payments, h.buses.Commands,
		reservations.ConfirmCommand{ReservationID: id, PaymentRef: "pay-77"})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", again.Status)

	_, err = commands.Dispatch[reservations.CompleteCommand, dto.Reservation](adminCtx(), h.buses.Commands,
		reservations.CompleteCommand{ReservationID: id})
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	_, err = commands.Dispatch[reservations.CancelCommand, dto.Reservation](as("bob"), h.buses.Commands,
		reservations.CancelCommand{ReservationID: id, Reason: "not mine"})
	assert.ErrorIs(t, err, domainerr.ErrNotFound)

	_, err = h.commit(as("bob"), booking("bob", "villa", 9, 11, 1))
	require.ErrorIs(t, err, domainerr.ErrConflict)

	cancelled, err := commands.Dispatch[reservations.CancelCommand, dto.Reservation](as("ann"), h.buses.Commands,
		reservations.CancelCommand{ReservationID: id, Reason: "plans changed"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	_, err = h.commit(as("bob"), booking("bob", "villa", 9, 11, 1))
	require.NoError(t, err)

	names := make([]string, 0)
	for _, rec := range h.store.Records() {
		names = append(names, rec.Name)
	}
	assert.Contains(t, names, "reservation.requested")
	assert.Contains(t, names, "reservation.confirmed")
	assert.Contains(t, names, "reservation.cancelled")
}

func Test_Queries_CheckAndSearch(t *testing.T) {
	h := newHarness(t)
	_, err := h.commit(as("ann"), booking("ann", "villa", 12, 14, 1))
	require.NoError(t, err)

	check, err := queries.Ask[availability.CheckQuery, dto.AvailabilityCheck](context.Background(), h.buses.Queries,
		availability.CheckQuery{ResourceID: "villa", CheckIn: day(13), CheckOut: day(15), PartySize: 1})
	require.NoError(t, err)
	assert.False(t, check.Available)
	require.NotNil(t, check.Conflict)
	assert.Equal(t, "2026-07-13", check.Conflict.Date)

	free, err := queries.Ask[availability.CheckQuery, dto.AvailabilityCheck](context.Background(), h.buses.Queries,
		availability.CheckQuery{ResourceID: "villa", CheckIn: day(14), CheckOut: day(16), PartySize: 1})
	require.NoError(t, err)
	assert.True(t, free.Available)
	require.NotNil(t, free.Quote)
	assert.Equal(t, int64(20000), free.Quote.Total.Amount)

	result, err := queries.Ask[availability.SearchQuery, dto.SearchResult](context.Background(), h.buses.Queries,
		availability.SearchQuery{Kind: "property", City: "split", CheckIn: day(12), CheckOut: day(14), PartySize: 1})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	byID := map[string]dto.SearchItem{}
	for _, item := range result.Items {
		byID[item.Resource.ID] = item
	}
	assert.True(t, byID["loft"].IsAvailable)
	assert.False(t, byID["villa"].IsAvailable)
}

func Test_Queries_ReadsLeaveNoTrace(t *testing.T) {
	h := newHarness(t)
	q := availability.WindowQuery{ResourceID: "kayak", From: day(1), To: day(4), PartySize: 2}
	before := len(h.store.Records())

	first, err := queries.Ask[availability.WindowQuery, dto.Window](context.Background(), h.buses.Queries, q)
	require.NoError(t, err)
	second, err := queries.Ask[availability.WindowQuery, dto.Window](context.Background(), h.buses.Queries, q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, h.store.Records(), before)
}

func Test_AccessRules_CoverEveryKey(t *testing.T) {
	h := newHarness(t)
	rules := registry.AccessRules()
	keys := []string{
		reservations.CommitKey, reservations.GuestCommitKey, reservations.ConfirmKey,
		reservations.CancelKey, reservations.CompleteKey, reservations.GetKey, reservations.ListMineKey,
		availability.WindowKey, availability.CheckKey, availability.SearchKey,
		admin.UpsertResourceKey, admin.AddBlocksKey, admin.RemoveBlocksKey, admin.SetPricesKey, admin.ClearPricesKey,
	}
	for _, k := range keys {
		_, ok := rules[k]
		assert.True(t, ok, k)
	}
	assert.Len(t, rules, len(keys))
	assert.NotNil(t, h.buses.Policy)

	var _ uow.UoWFactory = h.store
}
