package availability

import (
	"context"
	"errors"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

// CheckQuery is the optimistic pre-check shown to a guest before booking. Its
// answer is advisory; the writer decides again at commit time.
type CheckQuery struct {
	ResourceID string    `validate:"required"`
	CheckIn    time.Time `validate:"required"`
	CheckOut   time.Time `validate:"required"`
	Slot       string    `validate:"omitempty,slot"`
	PartySize  int       `validate:"gte=1"`
}

func (q CheckQuery) Key() string { return CheckKey }

func (h *Handler) Check(ctx context.Context, q CheckQuery) (dto.AvailabilityCheck, error) {
	unit, ctx, release, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.AvailabilityCheck{}, err
	}
	defer release()

	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.AvailabilityCheck{}, domainerr.Validation("range", err)
	}
	ix, lane, err := uow.Calendar(unit, h.MaxDays).BuildFor(ctx, resources.ID(q.ResourceID), q.Slot, dr)
	if err != nil {
		return dto.AvailabilityCheck{}, err
	}
	decision, err := domainavailability.Check(ix, dr, q.PartySize, lane.Resource.Capacity)
	if err != nil {
		return dto.AvailabilityCheck{}, err
	}
	out := dto.AvailabilityCheck{ResourceID: string(lane.Resource.ID), Slot: lane.Slot, Available: decision.Admitted}
	if !decision.Admitted {
		var conflict *domainerr.ConflictError
		if errors.As(decision.Err(), &conflict) {
			out.Conflict = dto.MapConflict(conflict)
		}
		return out, nil
	}
	quote, err := uow.Pricing(unit).Quote(ctx, lane.Resource, dr, q.PartySize)
	if err != nil {
		return dto.AvailabilityCheck{}, err
	}
	mapped := dto.MapQuote(quote)
	out.Quote = &mapped
	return out, nil
}

var _ queries.HandlerFunc[CheckQuery, dto.AvailabilityCheck] = (*Handler)(nil).Check
