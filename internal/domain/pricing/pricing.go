package pricing

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset    = errors.New("pricing: currency must be defined")
	ErrNegativePrice    = errors.New("pricing: price cannot be negative")
	ErrCurrencyMismatch = errors.New("pricing: override currency differs from resource base price")
	ErrNoRates          = errors.New("pricing: at least one rate is required")
	ErrPartySize        = errors.New("pricing: party size must be positive")
	ErrOverrideNotFound = errors.New("pricing: price override not found")
)

// Unit says what a single rate is charged for.
type Unit string

const (
	UnitNight  Unit = "night"
	UnitPerson Unit = "person"
)

// PriceOverride supersedes the base price of a resource for one date.
type PriceOverride struct {
	ResourceID resources.ID
	Date       time.Time
	Price      money.Money
	UpdatedAt  time.Time
}

func NewOverride(resource *resources.Resource, date time.Time, price money.Money, now time.Time) (PriceOverride, error) {
	if price.Currency == "" {
		return PriceOverride{}, ErrCurrencyUnset
	}
	if price.Amount < 0 {
		return PriceOverride{}, ErrNegativePrice
	}
	if resource != nil && resource.BasePrice.Currency != price.Currency {
		return PriceOverride{}, ErrCurrencyMismatch
	}
	o := PriceOverride{Date: daterange.Day(date), Price: price, UpdatedAt: now.UTC()}
	if resource != nil {
		o.ResourceID = resource.ID
	}
	return o, nil
}

// OverrideRepository stores overrides keyed by (resource, date). Delete
// returns ErrOverrideNotFound when nothing was stored for the date.
type OverrideRepository interface {
	Overrides(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]PriceOverride, error)
	Save(ctx context.Context, override PriceOverride) error
	Delete(ctx context.Context, id resources.ID, date time.Time) error
}

// Rate is the resolved price of one date.
type Rate struct {
	Date     time.Time
	Price    money.Money
	Override bool
}

// PriceBreakdown is the charge for a reservation: the resolved rate of every
// date plus the total. Properties pay the sum of nightly rates; activities pay
// the slot rate once per participant.
type PriceBreakdown struct {
	Unit      Unit
	Rates     []Rate
	PartySize int
	Total     money.Money
}

func (p *PriceBreakdown) Validate() error {
	if len(p.Rates) == 0 {
		return ErrNoRates
	}
	if p.PartySize <= 0 {
		return ErrPartySize
	}
	for _, r := range p.Rates {
		if r.Price.Currency == "" {
			return ErrCurrencyUnset
		}
		if r.Price.Amount < 0 {
			return ErrNegativePrice
		}
	}
	return nil
}

func (p *PriceBreakdown) RecalculateTotal() error {
	if err := p.Validate(); err != nil {
		return err
	}
	prices := make([]money.Money, 0, len(p.Rates))
	for _, r := range p.Rates {
		prices = append(prices, r.Price)
	}
	total, err := money.Sum(prices...)
	if err != nil {
		return err
	}
	if p.Unit == UnitPerson {
		total = total.Multiply(int64(p.PartySize))
	}
	p.Total = total
	return nil
}

func (p PriceBreakdown) Copy() PriceBreakdown {
	clone := p
	clone.Rates = append([]Rate(nil), p.Rates...)
	return clone
}

// ResolvePrice returns the override for (resource, date) when present, else
// the resource base price.
func ResolvePrice(resource *resources.Resource, date time.Time, overrides []PriceOverride) money.Money {
	day := daterange.Day(date)
	for _, o := range overrides {
		if o.ResourceID == resource.ID && o.Date.Equal(day) {
			return o.Price
		}
	}
	return resource.BasePrice
}

// Resolver answers "what is the rate for this resource on this date" using
// the overrides visible to the current unit of work.
type Resolver struct {
	Overrides OverrideRepository
}

func (r Resolver) ResolvePrice(ctx context.Context, resource *resources.Resource, date time.Time) (money.Money, error) {
	rates, err := r.Rates(ctx, resource, daterange.SingleDay(date))
	if err != nil {
		return money.Money{}, err
	}
	return rates[0].Price, nil
}

// Rates resolves every date of the range in order.
func (r Resolver) Rates(ctx context.Context, resource *resources.Resource, dr daterange.DateRange) ([]Rate, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	var overrides []PriceOverride
	if r.Overrides != nil {
		var err error
		overrides, err = r.Overrides.Overrides(ctx, resource.ID, dr)
		if err != nil {
			return nil, err
		}
	}
	byDay := make(map[string]money.Money, len(overrides))
	for _, o := range overrides {
		if o.ResourceID == resource.ID {
			byDay[daterange.Key(o.Date)] = o.Price
		}
	}
	days := dr.Days()
	rates := make([]Rate, 0, len(days))
	for _, d := range days {
		if price, ok := byDay[daterange.Key(d)]; ok {
			rates = append(rates, Rate{Date: d, Price: price, Override: true})
			continue
		}
		rates = append(rates, Rate{Date: d, Price: resource.BasePrice})
	}
	return rates, nil
}

// Quote prices a stay or a slot booking.
func (r Resolver) Quote(ctx context.Context, resource *resources.Resource, dr daterange.DateRange, partySize int) (PriceBreakdown, error) {
	rates, err := r.Rates(ctx, resource, dr)
	if err != nil {
		return PriceBreakdown{}, err
	}
	unit := UnitNight
	if resource.Kind == resources.KindActivity {
		unit = UnitPerson
	}
	breakdown := PriceBreakdown{Unit: unit, Rates: rates, PartySize: partySize}
	if err := breakdown.RecalculateTotal(); err != nil {
		return PriceBreakdown{}, err
	}
	return breakdown, nil
}
