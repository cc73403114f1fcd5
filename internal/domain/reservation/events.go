package reservation

import (
	"time"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type Requested struct {
	ReservationID ID
	ResourceID    resources.ID
	GuestID       string
	Range         daterange.DateRange
	Slot          string
	PartySize     int
	Total         money.Money
	At            time.Time
}

func (e Requested) EventName() string     { return "reservation.requested" }
func (e Requested) AggregateID() string   { return string(e.ReservationID) }
func (e Requested) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	ReservationID ID
	ResourceID    resources.ID
	PaymentRef    string
	Total         money.Money
	At            time.Time
}

func (e Confirmed) EventName() string     { return "reservation.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.ReservationID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	ReservationID ID
	ResourceID    resources.ID
	Range         daterange.DateRange
	Slot          string
	Reason        string
	At            time.Time
}

func (e Cancelled) EventName() string     { return "reservation.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.ReservationID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }

type Completed struct {
	ReservationID ID
	ResourceID    resources.ID
	At            time.Time
}

func (e Completed) EventName() string     { return "reservation.completed" }
func (e Completed) AggregateID() string   { return string(e.ReservationID) }
func (e Completed) OccurredAt() time.Time { return e.At }
