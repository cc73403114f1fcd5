package resources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/money"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func Test_NewResource_PropertyDefaultsToCapacityOne(t *testing.T) {
	r, err := NewResource(Params{
		ID:        "villa-1",
		Kind:      KindProperty,
		Title:     "  Sea view villa ",
		City:      "Split",
		BasePrice: money.Must(10000, "usd"),
		Active:    true,
		Now:       now,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, r.Capacity)
	assert.Equal(t, "Sea view villa", r.Title)
	assert.Equal(t, "USD", r.BasePrice.Currency)
	require.Len(t, r.Events(), 1)
	assert.Equal(t, "resource.upserted", r.Events()[0].EventName())
}

func Test_NewResource_Invariants(t *testing.T) {
	base := Params{ID: "x", Kind: KindActivity, Title: "Kayak tour", Capacity: 8, BasePrice: money.Must(4500, "EUR"), Now: now}

	cases := []struct {
		name   string
		mutate func(p *Params)
		want   error
	}{
		{"missing id", func(p *Params) { p.ID = " " }, ErrIDRequired},
		{"missing title", func(p *Params) { p.Title = "" }, ErrTitleRequired},
		{"bad kind", func(p *Params) { p.Kind = "boat" }, ErrInvalidKind},
		{"activity without capacity", func(p *Params) { p.Capacity = 0 }, ErrCapacity},
		{"property with capacity", func(p *Params) { p.Kind = KindProperty; p.Capacity = 4 }, ErrPropertyCapacity},
		{"property with slots", func(p *Params) { p.Kind = KindProperty; p.Capacity = 1; p.Slots = []string{"10:00"} }, ErrPropertySlots},
		{"malformed slot", func(p *Params) { p.Slots = []string{"25:00"} }, ErrInvalidSlot},
		{"negative price", func(p *Params) { p.BasePrice = money.Must(-1, "EUR") }, ErrBasePrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			_, err := NewResource(p)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func Test_RequireSlot(t *testing.T) {
	activity, err := NewResource(Params{ID: "a", Kind: KindActivity, Title: "Tour", Capacity: 10, BasePrice: money.Must(100, "EUR"), Slots: []string{"14:00", "09:30", "14:00"}, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:30", "14:00"}, activity.Slots)

	slot, err := activity.RequireSlot(" 14:00 ")
	require.NoError(t, err)
	assert.Equal(t, "14:00", slot)

	_, err = activity.RequireSlot("")
	assert.ErrorIs(t, err, ErrSlotRequired)
	_, err = activity.RequireSlot("18:00")
	assert.ErrorIs(t, err, ErrUnknownSlot)

	property, err := NewResource(Params{ID: "p", Kind: KindProperty, Title: "Flat", BasePrice: money.Must(100, "EUR"), Now: now})
	require.NoError(t, err)
	_, err = property.RequireSlot("10:00")
	assert.ErrorIs(t, err, ErrPropertySlots)
	assert.Equal(t, []string{""}, property.Lanes())
}

func Test_Update_KeepsKind(t *testing.T) {
	r, err := NewResource(Params{ID: "p", Kind: KindProperty, Title: "Flat", BasePrice: money.Must(100, "EUR"), Now: now})
	require.NoError(t, err)

	err = r.Update(Params{Kind: KindActivity, Title: "Flat", Capacity: 3, BasePrice: money.Must(100, "EUR")})
	assert.ErrorIs(t, err, ErrInvalidKind)

	err = r.Update(Params{Title: "Renovated flat", BasePrice: money.Must(12000, "EUR"), Active: true, Now: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, KindProperty, r.Kind)
	assert.True(t, r.Active)
	assert.Equal(t, int64(12000), r.BasePrice.Amount)
}

func Test_SearchParams_Page(t *testing.T) {
	mk := func(id, city string, kind Kind, capacity int, active bool) *Resource {
		return &Resource{ID: ID(id), City: city, Kind: kind, Capacity: capacity, Active: active}
	}
	candidates := []*Resource{
		mk("c", "Split", KindProperty, 1, true),
		mk("a", "split", KindProperty, 1, true),
		mk("b", "Zadar", KindProperty, 1, true),
		mk("d", "Split", KindActivity, 10, true),
		mk("e", "Split", KindProperty, 1, false),
	}

	res := SearchParams{Kind: "PROPERTY", City: " SPLIT ", OnlyActive: true, Limit: 1}.Page(candidates)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, ID("a"), res.Items[0].ID)

	res = SearchParams{MinCapacity: 5}.Page(candidates)
	require.Len(t, res.Items, 1)
	assert.Equal(t, ID("d"), res.Items[0].ID)

	res = SearchParams{Offset: 10}.Page(candidates)
	assert.Empty(t, res.Items)
	assert.Equal(t, 5, res.Total)
}
