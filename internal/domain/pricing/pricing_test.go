package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type overridesStub struct {
	items []PriceOverride
	err   error
}

func (s overridesStub) Overrides(_ context.Context, id resources.ID, dr daterange.DateRange) ([]PriceOverride, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []PriceOverride
	for _, o := range s.items {
		if o.ResourceID == id && dr.ContainsDate(o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s overridesStub) Save(context.Context, PriceOverride) error             { return nil }
func (s overridesStub) Delete(context.Context, resources.ID, time.Time) error { return nil }

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func villa() *resources.Resource {
	return &resources.Resource{ID: "villa", Kind: resources.KindProperty, Capacity: 1, BasePrice: money.Must(10000, "USD"), Active: true}
}

func Test_Quote_SumsNightlyRatesWithOverrides(t *testing.T) {
	resolver := Resolver{Overrides: overridesStub{items: []PriceOverride{
		{ResourceID: "villa", Date: day(2), Price: money.Must(15000, "USD")},
		{ResourceID: "other", Date: day(1), Price: money.Must(1, "USD")},
	}}}
	dr, err := daterange.New(day(1), day(4))
	require.NoError(t, err)

	quote, err := resolver.Quote(context.Background(), villa(), dr, 2)

	require.NoError(t, err)
	assert.Equal(t, money.Must(35000, "USD"), quote.Total)
	assert.Equal(t, UnitNight, quote.Unit)
	require.Len(t, quote.Rates, 3)
	assert.False(t, quote.Rates[0].Override)
	assert.True(t, quote.Rates[1].Override)
	assert.Equal(t, money.Must(15000, "USD"), quote.Rates[1].Price)
}

func Test_Quote_ActivityChargesPerPerson(t *testing.T) {
	tour := &resources.Resource{ID: "tour", Kind: resources.KindActivity, Capacity: 12, BasePrice: money.Must(4500, "EUR")}
	resolver := Resolver{Overrides: overridesStub{items: []PriceOverride{{ResourceID: "tour", Date: day(5), Price: money.Must(5000, "EUR")}}}}

	quote, err := resolver.Quote(context.Background(), tour, daterange.SingleDay(day(5)), 3)

	require.NoError(t, err)
	assert.Equal(t, UnitPerson, quote.Unit)
	assert.Equal(t, money.Must(15000, "EUR"), quote.Total)
}

func Test_ResolvePrice(t *testing.T) {
	overrides := []PriceOverride{{ResourceID: "villa", Date: day(2), Price: money.Must(15000, "USD")}}

	assert.Equal(t, money.Must(15000, "USD"), ResolvePrice(villa(), day(2).Add(13*time.Hour), overrides))
	assert.Equal(t, money.Must(10000, "USD"), ResolvePrice(villa(), day(3), overrides))

	price, err := Resolver{Overrides: overridesStub{items: overrides}}.ResolvePrice(context.Background(), villa(), day(2))
	require.NoError(t, err)
	assert.Equal(t, money.Must(15000, "USD"), price)
}

func Test_Rates_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store down")
	_, err := Resolver{Overrides: overridesStub{err: boom}}.Rates(context.Background(), villa(), daterange.SingleDay(day(1)))
	assert.ErrorIs(t, err, boom)
}

func Test_NewOverride_Validates(t *testing.T) {
	_, err := NewOverride(villa(), day(1), money.Must(100, "EUR"), day(1))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = NewOverride(villa(), day(1), money.Must(-100, "USD"), day(1))
	assert.ErrorIs(t, err, ErrNegativePrice)

	o, err := NewOverride(villa(), day(1).Add(5*time.Hour), money.Must(100, "USD"), day(1))
	require.NoError(t, err)
	assert.Equal(t, day(1), o.Date)
	assert.Equal(t, resources.ID("villa"), o.ResourceID)
}

func Test_RecalculateTotal_RequiresPartyAndRates(t *testing.T) {
	p := PriceBreakdown{Unit: UnitNight, PartySize: 1}
	assert.ErrorIs(t, p.RecalculateTotal(), ErrNoRates)

	p = PriceBreakdown{Unit: UnitNight, Rates: []Rate{{Date: day(1), Price: money.Must(1, "USD")}}}
	assert.ErrorIs(t, p.RecalculateTotal(), ErrPartySize)
}
