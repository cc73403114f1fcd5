package dto

import (
	"time"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
)

type Rate struct {
	Date     string `json:"date"`
	Price    Money  `json:"price"`
	Override bool   `json:"override,omitempty"`
}

type Quote struct {
	Unit      string `json:"unit"`
	PartySize int    `json:"party_size"`
	Rates     []Rate `json:"rates"`
	Total     Money  `json:"total"`
}

type Reservation struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	Kind       string    `json:"kind"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Slot       string    `json:"slot,omitempty"`
	PartySize  int       `json:"party_size"`
	Status     string    `json:"status"`
	GuestID    string    `json:"guest_id"`
	GuestCheck bool      `json:"guest_checkout,omitempty"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	Reason     string    `json:"cancel_reason,omitempty"`
	Price      Quote     `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReservationResult is returned by the booking commands. Replayed is set
// when an earlier submission with the same idempotency key was returned.
type ReservationResult struct {
	Reservation Reservation `json:"reservation"`
	Replayed    bool        `json:"replayed"`
}

type ReservationCollection struct {
	Items []Reservation `json:"items"`
}

func MapQuote(p pricing.PriceBreakdown) Quote {
	rates := make([]Rate, 0, len(p.Rates))
	for _, r := range p.Rates {
		rates = append(rates, Rate{Date: r.Date.Format(time.DateOnly), Price: MapMoney(r.Price), Override: r.Override})
	}
	return Quote{Unit: string(p.Unit), PartySize: p.PartySize, Rates: rates, Total: MapMoney(p.Total)}
}

func MapReservation(r *reservation.Reservation) Reservation {
	if r == nil {
		return Reservation{}
	}
	return Reservation{
		ID:         string(r.ID),
		ResourceID: string(r.ResourceID),
		Kind:       string(r.Kind),
		CheckIn:    r.Range.CheckIn.Format(time.DateOnly),
		CheckOut:   r.Range.CheckOut.Format(time.DateOnly),
		Slot:       r.Slot,
		PartySize:  r.PartySize,
		Status:     string(r.Status),
		GuestID:    r.Payer.GuestID,
		GuestCheck: r.Payer.Guest,
		PaymentRef: r.PaymentRef,
		Reason:     r.CancelReason,
		Price:      MapQuote(r.Price),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
