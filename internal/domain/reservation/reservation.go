package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrPartySize      = errors.New("reservation: party size must be positive")
	ErrPayerRequired  = errors.New("reservation: payer identity is required")
	ErrInvalidState   = errors.New("reservation: invalid state transition")
	ErrNotFinished    = errors.New("reservation: range has not ended yet")
	ErrPaymentRef     = errors.New("reservation: payment reference is required")
	ErrResourceNeeded = errors.New("reservation: resource id is required")
	ErrKeyConflict    = errors.New("reservation: idempotency key belongs to a different request")

	// ErrDuplicate is returned by stores when a uniqueness constraint rejects
	// an insert.
	ErrDuplicate = errors.New("reservation: duplicate")
)

type ID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Payer identifies who a reservation is charged to. Guest is set for the
// unauthenticated checkout variant.
type Payer struct {
	GuestID string
	Name    string
	Email   string
	Phone   string
	Guest   bool
}

type Reservation struct {
	ID             ID
	ResourceID     resources.ID
	Kind           resources.Kind
	Range          daterange.DateRange
	Slot           string
	PartySize      int
	Status         Status
	Price          pricing.PriceBreakdown
	Payer          Payer
	IdempotencyKey string
	PaymentRef     string
	CancelReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

// Repository persists reservations. ByID returns a domainerr.NotFoundError for
// unknown ids; ByIdempotencyKey returns nil, nil when the key is unused.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Reservation, error)
	Save(ctx context.Context, r *Reservation) error
	// Overlapping lists non-cancelled reservations of the resource whose range
	// overlaps dr.
	Overlapping(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]*Reservation, error)
	ByIdempotencyKey(ctx context.Context, key string) (*Reservation, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Reservation, error)
	// LockLedger serializes writers on one resource until the unit of work ends.
	LockLedger(ctx context.Context, id resources.ID) error
}

type CreateParams struct {
	ID             ID
	Resource       *resources.Resource
	Range          daterange.DateRange
	Slot           string
	PartySize      int
	Price          pricing.PriceBreakdown
	Payer          Payer
	IdempotencyKey string
	CreatedAt      time.Time
}

// New creates a pending reservation.
func New(params CreateParams) (*Reservation, error) {
	if params.Resource == nil || params.Resource.ID == "" {
		return nil, ErrResourceNeeded
	}
	if params.PartySize <= 0 {
		return nil, ErrPartySize
	}
	if strings.TrimSpace(params.Payer.GuestID) == "" {
		return nil, ErrPayerRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if err := params.Price.RecalculateTotal(); err != nil {
		return nil, err
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	r := &Reservation{
		ID:             params.ID,
		ResourceID:     params.Resource.ID,
		Kind:           params.Resource.Kind,
		Range:          params.Range,
		Slot:           params.Slot,
		PartySize:      params.PartySize,
		Status:         StatusPending,
		Price:          params.Price.Copy(),
		Payer:          params.Payer,
		IdempotencyKey: strings.TrimSpace(params.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.Record(Requested{
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		GuestID:       r.Payer.GuestID,
		Range:         r.Range,
		Slot:          r.Slot,
		PartySize:     r.PartySize,
		Total:         r.Price.Total,
		At:            now,
	})
	return r, nil
}

func (r *Reservation) Confirm(paymentRef string, now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidState
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" && r.Price.Total.Amount > 0 {
		return ErrPaymentRef
	}
	r.PaymentRef = paymentRef
	r.Status = StatusConfirmed
	r.UpdatedAt = now.UTC()
	r.Record(Confirmed{ReservationID: r.ID, ResourceID: r.ResourceID, PaymentRef: paymentRef, Total: r.Price.Total, At: r.UpdatedAt})
	return nil
}

// Cancel releases the claimed capacity.
func (r *Reservation) Cancel(reason string, now time.Time) error {
	switch r.Status {
	case StatusPending, StatusConfirmed:
	default:
		return ErrInvalidState
	}
	r.Status = StatusCancelled
	r.CancelReason = strings.TrimSpace(reason)
	r.UpdatedAt = now.UTC()
	r.Record(Cancelled{ReservationID: r.ID, ResourceID: r.ResourceID, Range: r.Range, Slot: r.Slot, Reason: r.CancelReason, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) Complete(now time.Time) error {
	if r.Status != StatusConfirmed {
		return ErrInvalidState
	}
	if now.UTC().Before(r.Range.CheckOut) {
		return ErrNotFinished
	}
	r.Status = StatusCompleted
	r.UpdatedAt = now.UTC()
	r.Record(Completed{ReservationID: r.ID, ResourceID: r.ResourceID, At: r.UpdatedAt})
	return nil
}

// Active reports whether the reservation still holds capacity.
func (r *Reservation) Active() bool {
	return r.Status != StatusCancelled
}

func (r *Reservation) Claim() availability.Claim {
	return availability.Claim{Range: r.Range, Slot: r.Slot, PartySize: r.PartySize}
}

// Matches reports whether a replayed request describes this reservation.
func (r *Reservation) Matches(resourceID resources.ID, dr daterange.DateRange, slot string, partySize int, guestID string) bool {
	return r.ResourceID == resourceID &&
		r.Range.CheckIn.Equal(dr.CheckIn) &&
		r.Range.CheckOut.Equal(dr.CheckOut) &&
		r.Slot == slot &&
		r.PartySize == partySize &&
		r.Payer.GuestID == guestID
}

type claimReader struct {
	repo Repository
}

// ClaimReader exposes a repository to the calendar as anonymous claims.
func ClaimReader(repo Repository) availability.ClaimReader {
	return claimReader{repo: repo}
}

func (c claimReader) ActiveClaims(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]availability.Claim, error) {
	list, err := c.repo.Overlapping(ctx, id, dr)
	if err != nil {
		return nil, err
	}
	claims := make([]availability.Claim, 0, len(list))
	for _, r := range list {
		if r == nil || !r.Active() {
			continue
		}
		claims = append(claims, r.Claim())
	}
	return claims, nil
}
