package mongo

import (
	"strings"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/guest"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type resourceDocument struct {
	ID        string        `bson:"_id"`
	Kind      string        `bson:"kind"`
	Title     string        `bson:"title"`
	City      string        `bson:"city"`
	CityLower string        `bson:"city_lower"`
	Capacity  int           `bson:"capacity"`
	BasePrice moneyDocument `bson:"base_price"`
	Slots     []string      `bson:"slots"`
	Active    bool          `bson:"active"`
	Version   int64         `bson:"version"`
	CreatedAt int64         `bson:"created_at"`
	UpdatedAt int64         `bson:"updated_at"`
}

func newResourceDocument(r *resources.Resource) resourceDocument {
	return resourceDocument{
		ID:        string(r.ID),
		Kind:      string(r.Kind),
		Title:     r.Title,
		City:      r.City,
		CityLower: strings.ToLower(strings.TrimSpace(r.City)),
		Capacity:  r.Capacity,
		BasePrice: newMoneyDocument(r.BasePrice),
		Slots:     append([]string{}, r.Slots...),
		Active:    r.Active,
		Version:   r.Version,
		CreatedAt: r.CreatedAt.UnixMilli(),
		UpdatedAt: r.UpdatedAt.UnixMilli(),
	}
}

func (d resourceDocument) toAggregate() *resources.Resource {
	return &resources.Resource{
		ID:        resources.ID(d.ID),
		Kind:      resources.Kind(d.Kind),
		Title:     d.Title,
		City:      d.City,
		Capacity:  d.Capacity,
		BasePrice: d.BasePrice.toMoney(),
		Slots:     append([]string(nil), d.Slots...),
		Active:    d.Active,
		Version:   d.Version,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type rateDocument struct {
	Date     int64         `bson:"date"`
	Price    moneyDocument `bson:"price"`
	Override bool          `bson:"override"`
}

type priceDocument struct {
	Unit      string         `bson:"unit"`
	Rates     []rateDocument `bson:"rates"`
	PartySize int            `bson:"party_size"`
	Total     moneyDocument  `bson:"total"`
}

type payerDocument struct {
	GuestID string `bson:"guest_id"`
	Name    string `bson:"name,omitempty"`
	Email   string `bson:"email,omitempty"`
	Phone   string `bson:"phone,omitempty"`
	Guest   bool   `bson:"guest_checkout"`
}

type reservationDocument struct {
	ID             string        `bson:"_id"`
	ResourceID     string        `bson:"resource_id"`
	Kind           string        `bson:"kind"`
	Range          rangeDocument `bson:"range"`
	Slot           string        `bson:"slot"`
	PartySize      int           `bson:"party_size"`
	Status         string        `bson:"status"`
	Price          priceDocument `bson:"price"`
	Payer          payerDocument `bson:"payer"`
	IdempotencyKey string        `bson:"idempotency_key,omitempty"`
	PaymentRef     string        `bson:"payment_ref,omitempty"`
	CancelReason   string        `bson:"cancel_reason,omitempty"`
	CreatedAt      int64         `bson:"created_at"`
	UpdatedAt      int64         `bson:"updated_at"`
	Version        int64         `bson:"version"`
}

func newReservationDocument(r *reservation.Reservation) reservationDocument {
	rates := make([]rateDocument, 0, len(r.Price.Rates))
	for _, rate := range r.Price.Rates {
		rates = append(rates, rateDocument{Date: rate.Date.UnixMilli(), Price: newMoneyDocument(rate.Price), Override: rate.Override})
	}
	return reservationDocument{
		ID:         string(r.ID),
		ResourceID: string(r.ResourceID),
		Kind:       string(r.Kind),
		Range:      rangeDocument{CheckIn: r.Range.CheckIn.UnixMilli(), CheckOut: r.Range.CheckOut.UnixMilli()},
		Slot:       r.Slot,
		PartySize:  r.PartySize,
		Status:     string(r.Status),
		Price: priceDocument{
			Unit:      string(r.Price.Unit),
			Rates:     rates,
			PartySize: r.Price.PartySize,
			Total:     newMoneyDocument(r.Price.Total),
		},
		Payer: payerDocument{
			GuestID: r.Payer.GuestID,
			Name:    r.Payer.Name,
			Email:   r.Payer.Email,
			Phone:   r.Payer.Phone,
			Guest:   r.Payer.Guest,
		},
		IdempotencyKey: r.IdempotencyKey,
		PaymentRef:     r.PaymentRef,
		CancelReason:   r.CancelReason,
		CreatedAt:      r.CreatedAt.UnixMilli(),
		UpdatedAt:      r.UpdatedAt.UnixMilli(),
		Version:        r.Version,
	}
}

func (d reservationDocument) toAggregate() *reservation.Reservation {
	rates := make([]pricing.Rate, 0, len(d.Price.Rates))
	for _, rate := range d.Price.Rates {
		rates = append(rates, pricing.Rate{Date: timestampToTime(rate.Date), Price: rate.Price.toMoney(), Override: rate.Override})
	}
	return &reservation.Reservation{
		ID:         reservation.ID(d.ID),
		ResourceID: resources.ID(d.ResourceID),
		Kind:       resources.Kind(d.Kind),
		Range:      daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Slot:       d.Slot,
		PartySize:  d.PartySize,
		Status:     reservation.Status(d.Status),
		Price: pricing.PriceBreakdown{
			Unit:      pricing.Unit(d.Price.Unit),
			Rates:     rates,
			PartySize: d.Price.PartySize,
			Total:     d.Price.Total.toMoney(),
		},
		Payer: reservation.Payer{
			GuestID: d.Payer.GuestID,
			Name:    d.Payer.Name,
			Email:   d.Payer.Email,
			Phone:   d.Payer.Phone,
			Guest:   d.Payer.Guest,
		},
		IdempotencyKey: d.IdempotencyKey,
		PaymentRef:     d.PaymentRef,
		CancelReason:   d.CancelReason,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
		Version:        d.Version,
	}
}

type blockDocument struct {
	ID         string `bson:"_id"`
	ResourceID string `bson:"resource_id"`
	Date       int64  `bson:"date"`
	Reason     string `bson:"reason"`
	CreatedAt  int64  `bson:"created_at"`
}

func newBlockDocument(b availability.BlockedDate) blockDocument {
	return blockDocument{
		ID:         dayID(b.ResourceID, b.Date),
		ResourceID: string(b.ResourceID),
		Date:       daterange.Day(b.Date).UnixMilli(),
		Reason:     b.Reason,
		CreatedAt:  b.CreatedAt.UnixMilli(),
	}
}

func (d blockDocument) toDomain() availability.BlockedDate {
	return availability.BlockedDate{
		ResourceID: resources.ID(d.ResourceID),
		Date:       timestampToTime(d.Date),
		Reason:     d.Reason,
		CreatedAt:  timestampToTime(d.CreatedAt),
	}
}

type overrideDocument struct {
	ID         string        `bson:"_id"`
	ResourceID string        `bson:"resource_id"`
	Date       int64         `bson:"date"`
	Price      moneyDocument `bson:"price"`
	UpdatedAt  int64         `bson:"updated_at"`
}

func newOverrideDocument(o pricing.PriceOverride) overrideDocument {
	return overrideDocument{
		ID:         dayID(o.ResourceID, o.Date),
		ResourceID: string(o.ResourceID),
		Date:       daterange.Day(o.Date).UnixMilli(),
		Price:      newMoneyDocument(o.Price),
		UpdatedAt:  o.UpdatedAt.UnixMilli(),
	}
}

func (d overrideDocument) toDomain() pricing.PriceOverride {
	return pricing.PriceOverride{
		ResourceID: resources.ID(d.ResourceID),
		Date:       timestampToTime(d.Date),
		Price:      d.Price.toMoney(),
		UpdatedAt:  timestampToTime(d.UpdatedAt),
	}
}

type guestDocument struct {
	ID        string `bson:"_id"`
	Email     string `bson:"email"`
	Name      string `bson:"name"`
	Phone     string `bson:"phone,omitempty"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
}

func newGuestDocument(g *guest.Guest) guestDocument {
	return guestDocument{
		ID:        string(g.ID),
		Email:     g.Email,
		Name:      g.Name,
		Phone:     g.Phone,
		CreatedAt: g.CreatedAt.UnixMilli(),
		UpdatedAt: g.UpdatedAt.UnixMilli(),
	}
}

func (d guestDocument) toAggregate() *guest.Guest {
	return &guest.Guest{
		ID:        guest.ID(d.ID),
		Email:     d.Email,
		Name:      d.Name,
		Phone:     d.Phone,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

func dayID(id resources.ID, date time.Time) string {
	return string(id) + "|" + daterange.Key(date)
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
