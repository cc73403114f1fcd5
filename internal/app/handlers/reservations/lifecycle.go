package reservations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/shared/domainerr"
)

const (
	ConfirmKey  = "reservation.confirm"
	CancelKey   = "reservation.cancel"
	CompleteKey = "reservation.complete"
)

// ConfirmCommand is sent by the payment collaborator once a payment settled.
type ConfirmCommand struct {
	ReservationID string `json:"reservation_id" validate:"required"`
	PaymentRef    string `json:"payment_ref" validate:"max=128"`
}

func (c ConfirmCommand) Key() string { return ConfirmKey }

type CancelCommand struct {
	ReservationID string `json:"reservation_id" validate:"required"`
	Reason        string `json:"reason" validate:"max=500"`
}

func (c CancelCommand) Key() string { return CancelKey }

type CompleteCommand struct {
	ReservationID string `json:"reservation_id" validate:"required"`
}

func (c CompleteCommand) Key() string { return CompleteKey }

// LifecycleHandler applies status transitions. Repeating a transition that
// already happened is a no-op so redelivered payment events are harmless.
type LifecycleHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Clock   func() time.Time
}

func (h *LifecycleHandler) Confirm(ctx context.Context, cmd ConfirmCommand) (dto.Reservation, error) {
	return h.transition(ctx, cmd.ReservationID, ConfirmKey, func(r *reservation.Reservation, now time.Time) (bool, error) {
		if r.Status == reservation.StatusConfirmed && r.PaymentRef == cmd.PaymentRef {
			return false, nil
		}
		return true, r.Confirm(cmd.PaymentRef, now)
	})
}

func (h *LifecycleHandler) Cancel(ctx context.Context, cmd CancelCommand) (dto.Reservation, error) {
	return h.transition(ctx, cmd.ReservationID, CancelKey, func(r *reservation.Reservation, now time.Time) (bool, error) {
		if r.Status == reservation.StatusCancelled {
			return false, nil
		}
		return true, r.Cancel(cmd.Reason, now)
	})
}

func (h *LifecycleHandler) Complete(ctx context.Context, cmd CompleteCommand) (dto.Reservation, error) {
	return h.transition(ctx, cmd.ReservationID, CompleteKey, func(r *reservation.Reservation, now time.Time) (bool, error) {
		if r.Status == reservation.StatusCompleted {
			return false, nil
		}
		return true, r.Complete(now)
	})
}

func (h *LifecycleHandler) transition(
	ctx context.Context,
	id string,
	action string,
	apply func(r *reservation.Reservation, now time.Time) (bool, error),
) (dto.Reservation, error) {
	unit, err := uow.MustFromContext(ctx)
	if err != nil {
		return dto.Reservation{}, err
	}
	r, err := unit.Reservations().ByID(ctx, reservation.ID(id))
	if err != nil {
		return dto.Reservation{}, err
	}
	if !policies.CanActFor(policies.PrincipalFrom(ctx), r.Payer.GuestID) {
		return dto.Reservation{}, domainerr.NotFound("reservation", id)
	}
	changed, err := apply(r, h.now())
	if err != nil {
		if errors.Is(err, reservation.ErrInvalidState) || errors.Is(err, reservation.ErrNotFinished) || errors.Is(err, reservation.ErrPaymentRef) {
			return dto.Reservation{}, domainerr.Validation("status", err)
		}
		return dto.Reservation{}, err
	}
	if !changed {
		return dto.MapReservation(r), nil
	}
	if err := unit.Reservations().Save(ctx, r); err != nil {
		return dto.Reservation{}, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, r.DrainEvents()); err != nil {
		return dto.Reservation{}, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "reservation status changed", "reservation_id", r.ID, "action", action, "status", r.Status)
	}
	return dto.MapReservation(r), nil
}

func (h *LifecycleHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var (
	_ commands.HandlerFunc[ConfirmCommand, dto.Reservation]  = (*LifecycleHandler)(nil).Confirm
	_ commands.HandlerFunc[CancelCommand, dto.Reservation]   = (*LifecycleHandler)(nil).Cancel
	_ commands.HandlerFunc[CompleteCommand, dto.Reservation] = (*LifecycleHandler)(nil).Complete
)
