package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/uow"
	"staybook/internal/domain/guest"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

const GuestCommitKey = "reservation.guest_commit"

// GuestCommitCommand books without an account. The guest identity is upserted
// by email in the same unit of work as the reservation.
type GuestCommitCommand struct {
	ResourceID string    `json:"resource_id" validate:"required,max=64"`
	CheckIn    time.Time `json:"check_in" validate:"required"`
	CheckOut   time.Time `json:"check_out" validate:"required"`
	Slot       string    `json:"slot,omitempty" validate:"omitempty,slot"`
	PartySize  int       `json:"party_size" validate:"gte=1"`
	Name       string    `json:"name" validate:"required,max=200"`
	Email      string    `json:"email" validate:"required,email"`
	Phone      string    `json:"phone,omitempty" validate:"omitempty,max=32"`
	RequestKey string    `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

func (c GuestCommitCommand) Key() string { return GuestCommitKey }

func (c GuestCommitCommand) IdempotencyKey() string { return c.RequestKey }

func (c GuestCommitCommand) ResultPrototype() any { return &dto.ReservationResult{} }

type GuestCommitHandler struct {
	Writer Writer
	NewID  func() string
}

func (h *GuestCommitHandler) Handle(ctx context.Context, cmd GuestCommitCommand) (dto.ReservationResult, error) {
	unit, err := uow.MustFromContext(ctx)
	if err != nil {
		return dto.ReservationResult{}, err
	}
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return dto.ReservationResult{}, domainerr.Validation("range", err)
	}
	g, err := h.upsertGuest(ctx, unit, cmd)
	if err != nil {
		return dto.ReservationResult{}, err
	}
	res, err := h.Writer.Commit(ctx, unit, Request{
		ResourceID: resources.ID(cmd.ResourceID),
		Range:      dr,
		Slot:       cmd.Slot,
		PartySize:  cmd.PartySize,
		Payer: reservation.Payer{
			GuestID: string(g.ID),
			Name:    g.Name,
			Email:   g.Email,
			Phone:   g.Phone,
			Guest:   true,
		},
		IdempotencyKey: cmd.RequestKey,
	})
	if err != nil {
		return dto.ReservationResult{}, err
	}
	return dto.ReservationResult{Reservation: dto.MapReservation(res.Reservation), Replayed: res.Replayed}, nil
}

func (h *GuestCommitHandler) upsertGuest(ctx context.Context, unit uow.UnitOfWork, cmd GuestCommitCommand) (*guest.Guest, error) {
	email, err := guest.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, domainerr.Validation("email", err)
	}
	repo := unit.Guests()
	existing, err := repo.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	now := h.Writer.now()
	if existing != nil {
		if existing.Refresh(cmd.Name, cmd.Phone, now) {
			if err := repo.Save(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	id := uuid.NewString()
	if h.NewID != nil {
		id = h.NewID()
	}
	g, err := guest.NewGuest(guest.CreateParams{
		ID:        guest.ID("guest-" + id),
		Email:     email,
		Name:      cmd.Name,
		Phone:     cmd.Phone,
		CreatedAt: now,
	})
	if err != nil {
		return nil, domainerr.Validation("guest", err)
	}
	if err := repo.Save(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

var _ commands.Handler[GuestCommitCommand, dto.ReservationResult] = (*GuestCommitHandler)(nil)
var _ middleware.IdempotentCommand = GuestCommitCommand{}
