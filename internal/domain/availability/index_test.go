package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/daterange"
)

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func span(t *testing.T, from, to int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(day(from), day(to))
	require.NoError(t, err)
	return dr
}

func Test_BuildIndex_CountsOverlappingClaimsPerDate(t *testing.T) {
	claims := []Claim{
		{Range: span(t, 1, 3), PartySize: 1},
		{Range: span(t, 3, 5), PartySize: 1},
		{Range: span(t, 9, 12), PartySize: 1},
	}

	ix, err := BuildIndex("villa", "", span(t, 2, 6), claims, nil)

	require.NoError(t, err)
	require.Len(t, ix.Days, 4)
	booked := make([]int, 0, len(ix.Days))
	for _, d := range ix.Days {
		booked = append(booked, d.BookedUnits)
	}
	assert.Equal(t, []int{1, 1, 1, 0}, booked)
}

func Test_BuildIndex_CheckoutDayIsNotOccupied(t *testing.T) {
	ix, err := BuildIndex("villa", "", span(t, 1, 6), []Claim{{Range: span(t, 1, 4), PartySize: 1}}, nil)
	require.NoError(t, err)

	checkout, ok := ix.Day(day(4))
	require.True(t, ok)
	assert.Zero(t, checkout.BookedUnits)

	lastNight, _ := ix.Day(day(3))
	assert.Equal(t, 1, lastNight.BookedUnits)
}

func Test_BuildIndex_ActivitySlotsAreSeparateLanes(t *testing.T) {
	claims := []Claim{
		{Range: daterange.SingleDay(day(5)), Slot: "09:00", PartySize: 4},
		{Range: daterange.SingleDay(day(5)), Slot: "09:00", PartySize: 3},
		{Range: daterange.SingleDay(day(5)), Slot: "14:00", PartySize: 6},
	}

	morning, err := BuildIndex("tour", "09:00", daterange.SingleDay(day(5)), claims, nil)
	require.NoError(t, err)
	afternoon, err := BuildIndex("tour", "14:00", daterange.SingleDay(day(5)), claims, nil)
	require.NoError(t, err)

	assert.Equal(t, 7, morning.Days[0].BookedUnits)
	assert.Equal(t, 6, afternoon.Days[0].BookedUnits)
}

func Test_BuildIndex_BlocksApplyToTheirResourceOnly(t *testing.T) {
	blocks := []BlockedDate{
		{ResourceID: "villa", Date: day(2), Reason: "maintenance"},
		{ResourceID: "other", Date: day(3), Reason: "owner_block"},
		{ResourceID: "villa", Date: day(20), Reason: "outside"},
	}

	ix, err := BuildIndex("villa", "", span(t, 1, 4), nil, blocks)

	require.NoError(t, err)
	assert.False(t, ix.Days[0].Blocked)
	assert.True(t, ix.Days[1].Blocked)
	assert.Equal(t, "maintenance", ix.Days[1].BlockReason)
	assert.False(t, ix.Days[2].Blocked)
}

func Test_BuildIndex_IsIdempotent(t *testing.T) {
	claims := []Claim{{Range: span(t, 1, 3), PartySize: 2}}
	blocks := []BlockedDate{{ResourceID: "tour", Date: day(2), Reason: "weather"}}

	first, err := BuildIndex("tour", "", span(t, 1, 5), claims, blocks)
	require.NoError(t, err)
	second, err := BuildIndex("tour", "", span(t, 1, 5), claims, blocks)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func Test_BuildIndex_RejectsInvalidRange(t *testing.T) {
	_, err := BuildIndex("villa", "", daterange.DateRange{CheckIn: day(2), CheckOut: day(2)}, nil, nil)
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func Test_BlockRange_ExpandsNights(t *testing.T) {
	blocks := BlockRange("villa", span(t, 1, 4), " ", day(1))

	require.Len(t, blocks, 3)
	assert.Equal(t, DefaultBlockReason, blocks[0].Reason)
	assert.Equal(t, day(3), blocks[2].Date)
}
