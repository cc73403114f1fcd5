package reservations

import (
	"context"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

const CommitKey = "reservation.commit"

// CommitCommand books a resource for an authenticated guest.
type CommitCommand struct {
	ResourceID string    `json:"resource_id" validate:"required,max=64"`
	CheckIn    time.Time `json:"check_in" validate:"required"`
	CheckOut   time.Time `json:"check_out" validate:"required"`
	Slot       string    `json:"slot,omitempty" validate:"omitempty,slot"`
	PartySize  int       `json:"party_size" validate:"gte=1"`
	GuestID    string    `json:"guest_id" validate:"required"`
	GuestName  string    `json:"guest_name,omitempty"`
	GuestEmail string    `json:"guest_email,omitempty" validate:"omitempty,email"`
	RequestKey string    `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

func (c CommitCommand) Key() string { return CommitKey }

func (c CommitCommand) IdempotencyKey() string { return c.RequestKey }

func (c CommitCommand) ResultPrototype() any { return &dto.ReservationResult{} }

type CommitHandler struct {
	Writer Writer
}

func (h *CommitHandler) Handle(ctx context.Context, cmd CommitCommand) (dto.ReservationResult, error) {
	unit, err := uow.MustFromContext(ctx)
	if err != nil {
		return dto.ReservationResult{}, err
	}
	if !policies.CanActFor(policies.PrincipalFrom(ctx), cmd.GuestID) {
		return dto.ReservationResult{}, &domainerr.ForbiddenError{Action: CommitKey}
	}
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return dto.ReservationResult{}, domainerr.Validation("range", err)
	}
	res, err := h.Writer.Commit(ctx, unit, Request{
		ResourceID: resources.ID(cmd.ResourceID),
		Range:      dr,
		Slot:       cmd.Slot,
		PartySize:  cmd.PartySize,
		Payer: reservation.Payer{
			GuestID: cmd.GuestID,
			Name:    cmd.GuestName,
			Email:   cmd.GuestEmail,
		},
		IdempotencyKey: cmd.RequestKey,
	})
	if err != nil {
		return dto.ReservationResult{}, err
	}
	return dto.ReservationResult{Reservation: dto.MapReservation(res.Reservation), Replayed: res.Replayed}, nil
}

var _ commands.Handler[CommitCommand, dto.ReservationResult] = (*CommitHandler)(nil)
var _ middleware.IdempotentCommand = CommitCommand{}
