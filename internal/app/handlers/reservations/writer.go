package reservations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

var (
	ErrCheckInPast     = errors.New("check-in must not be in the past")
	ErrActivityOneDay  = errors.New("activities are booked for a single date")
	ErrUnitRequired    = errors.New("reservations: unit of work required")
	ErrResourceMissing = errors.New("resource id is required")
)

// Request is everything the writer needs to commit one reservation.
type Request struct {
	ResourceID     resources.ID
	Range          daterange.DateRange
	Slot           string
	PartySize      int
	Payer          reservation.Payer
	IdempotencyKey string
}

type Result struct {
	Reservation *reservation.Reservation
	Replayed    bool
}

// Writer is the authoritative admission path. It re-reads the calendar inside
// the caller's unit of work after taking the resource ledger lock, so two
// writers racing for the last unit of capacity are decided one after the
// other.
type Writer struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	MaxDays int
	Clock   func() time.Time
	NewID   func() string
}

func (w Writer) Commit(ctx context.Context, unit uow.UnitOfWork, req Request) (Result, error) {
	if unit == nil {
		return Result{}, ErrUnitRequired
	}
	if err := w.validate(req); err != nil {
		return Result{}, err
	}
	repo := unit.Reservations()
	if err := repo.LockLedger(ctx, req.ResourceID); err != nil {
		return Result{}, err
	}

	if req.IdempotencyKey != "" {
		existing, err := repo.ByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return Result{}, err
		}
		if existing != nil {
			if !existing.Matches(req.ResourceID, req.Range, strings.TrimSpace(req.Slot), req.PartySize, req.Payer.GuestID) {
				return Result{}, domainerr.Validation("idempotency_key", reservation.ErrKeyConflict)
			}
			return Result{Reservation: existing, Replayed: true}, nil
		}
	}

	ix, lane, err := uow.Calendar(unit, w.MaxDays).BuildFor(ctx, req.ResourceID, req.Slot, req.Range)
	if err != nil {
		return Result{}, err
	}
	resource := lane.Resource
	if resource.Kind == resources.KindActivity && req.Range.Nights() != 1 {
		return Result{}, domainerr.Validation("range", ErrActivityOneDay)
	}
	decision, err := availability.Check(ix, req.Range, req.PartySize, resource.Capacity)
	if err != nil {
		return Result{}, err
	}
	if !decision.Admitted {
		conflict := decision.Err()
		w.logger().WarnContext(ctx, "overbooking prevented",
			"resource_id", resource.ID,
			"slot", lane.Slot,
			"party_size", req.PartySize,
			"error", conflict)
		return Result{}, conflict
	}

	quote, err := uow.Pricing(unit).Quote(ctx, resource, req.Range, req.PartySize)
	if err != nil {
		return Result{}, err
	}
	r, err := reservation.New(reservation.CreateParams{
		ID:             reservation.ID(w.newID()),
		Resource:       resource,
		Range:          req.Range,
		Slot:           lane.Slot,
		PartySize:      req.PartySize,
		Price:          quote,
		Payer:          req.Payer,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      w.now(),
	})
	if err != nil {
		return Result{}, domainerr.Validation("reservation", err)
	}
	if err := repo.Save(ctx, r); err != nil {
		if errors.Is(err, reservation.ErrDuplicate) {
			return Result{}, &domainerr.ConflictError{
				Date:      req.Range.CheckIn,
				Slot:      lane.Slot,
				Reason:    domainerr.ReasonDuplicate,
				Requested: req.PartySize,
			}
		}
		return Result{}, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), w.Encoder, r.DrainEvents()); err != nil {
		return Result{}, err
	}
	w.logger().InfoContext(ctx, "reservation committed",
		"reservation_id", r.ID,
		"resource_id", r.ResourceID,
		"nights", r.Range.Nights(),
		"party_size", r.PartySize)
	return Result{Reservation: r}, nil
}

func (w Writer) validate(req Request) error {
	if strings.TrimSpace(string(req.ResourceID)) == "" {
		return domainerr.Validation("resource_id", ErrResourceMissing)
	}
	if err := req.Range.Validate(); err != nil {
		return domainerr.Validation("range", err)
	}
	if req.PartySize <= 0 {
		return domainerr.Validation("party_size", reservation.ErrPartySize)
	}
	if strings.TrimSpace(req.Payer.GuestID) == "" {
		return domainerr.Validation("payer", reservation.ErrPayerRequired)
	}
	if req.Range.CheckIn.Before(daterange.Day(w.now())) {
		return domainerr.Validation("check_in", ErrCheckInPast)
	}
	return nil
}

func (w Writer) now() time.Time {
	if w.Clock != nil {
		return w.Clock().UTC()
	}
	return time.Now().UTC()
}

func (w Writer) newID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

func (w Writer) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
