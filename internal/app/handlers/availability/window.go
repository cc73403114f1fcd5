package availability

import (
	"context"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

const (
	WindowKey = "availability.window"
	CheckKey  = "availability.check"
	SearchKey = "availability.search"
)

// WindowQuery asks for the per-date availability of one resource lane.
type WindowQuery struct {
	ResourceID string    `validate:"required"`
	From       time.Time `validate:"required"`
	To         time.Time `validate:"required"`
	Slot       string    `validate:"omitempty,slot"`
	PartySize  int       `validate:"gte=0"`
}

func (q WindowQuery) Key() string { return WindowKey }

// Handler serves the read side of the calendar. Every call rebuilds the index
// from the store; nothing is cached between requests.
type Handler struct {
	UoWFactory uow.UoWFactory
	MaxDays    int
}

func (h *Handler) Window(ctx context.Context, q WindowQuery) (dto.Window, error) {
	unit, ctx, release, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Window{}, err
	}
	defer release()

	dr, err := daterange.New(q.From, q.To)
	if err != nil {
		return dto.Window{}, domainerr.Validation("range", err)
	}
	ix, lane, err := uow.Calendar(unit, h.MaxDays).BuildFor(ctx, resources.ID(q.ResourceID), q.Slot, dr)
	if err != nil {
		return dto.Window{}, err
	}
	rates, err := uow.Pricing(unit).Rates(ctx, lane.Resource, dr)
	if err != nil {
		return dto.Window{}, err
	}
	window := domainavailability.NewWindow(ix, lane.Resource.Capacity, q.PartySize, rates)
	return dto.MapWindow(string(lane.Resource.ID), window), nil
}

var _ queries.HandlerFunc[WindowQuery, dto.Window] = (*Handler)(nil).Window
