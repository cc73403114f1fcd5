package reservations

import (
	"context"
	"sort"

	"staybook/internal/app/dto"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/shared/domainerr"
)

const (
	GetKey      = "reservation.get"
	ListMineKey = "reservation.list_mine"
)

type GetQuery struct {
	ReservationID string `validate:"required"`
}

func (q GetQuery) Key() string { return GetKey }

type ListMineQuery struct {
	GuestID string `validate:"required"`
}

func (q ListMineQuery) Key() string { return ListMineKey }

type QueryHandler struct {
	UoWFactory uow.UoWFactory
}

// Get hides reservations of other guests behind a not found error.
func (h *QueryHandler) Get(ctx context.Context, q GetQuery) (dto.Reservation, error) {
	unit, ctx, release, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Reservation{}, err
	}
	defer release()

	r, err := unit.Reservations().ByID(ctx, reservation.ID(q.ReservationID))
	if err != nil {
		return dto.Reservation{}, err
	}
	if !policies.CanActFor(policies.PrincipalFrom(ctx), r.Payer.GuestID) {
		return dto.Reservation{}, domainerr.NotFound("reservation", q.ReservationID)
	}
	return dto.MapReservation(r), nil
}

// ListMine returns the caller's reservations, newest first.
func (h *QueryHandler) ListMine(ctx context.Context, q ListMineQuery) (dto.ReservationCollection, error) {
	if !policies.CanActFor(policies.PrincipalFrom(ctx), q.GuestID) {
		return dto.ReservationCollection{}, &domainerr.ForbiddenError{Action: ListMineKey}
	}
	unit, ctx, release, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	defer release()

	list, err := unit.Reservations().ListByGuest(ctx, q.GuestID)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	items := make([]dto.Reservation, 0, len(list))
	for _, r := range list {
		items = append(items, dto.MapReservation(r))
	}
	return dto.ReservationCollection{Items: items}, nil
}

var (
	_ queries.HandlerFunc[GetQuery, dto.Reservation]                = (*QueryHandler)(nil).Get
	_ queries.HandlerFunc[ListMineQuery, dto.ReservationCollection] = (*QueryHandler)(nil).ListMine
)
