package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

// AddBlocksCommand blocks every date of [From, To). Existing reservations on
// those dates are kept; only new admissions are refused.
type AddBlocksCommand struct {
	ResourceID string    `json:"resource_id" validate:"required"`
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required"`
	Reason     string    `json:"reason" validate:"max=200"`
}

func (c AddBlocksCommand) Key() string { return AddBlocksKey }

type RemoveBlocksCommand struct {
	ResourceID string    `json:"resource_id" validate:"required"`
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required"`
}

func (c RemoveBlocksCommand) Key() string { return RemoveBlocksKey }

// SetPricesCommand stores the same override on every date of [From, To).
type SetPricesCommand struct {
	ResourceID string    `json:"resource_id" validate:"required"`
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required"`
	Amount     int64     `json:"amount" validate:"gte=0"`
	Currency   string    `json:"currency" validate:"required,len=3"`
}

func (c SetPricesCommand) Key() string { return SetPricesKey }

type ClearPricesCommand struct {
	ResourceID string    `json:"resource_id" validate:"required"`
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required"`
}

func (c ClearPricesCommand) Key() string { return ClearPricesKey }

func (h *Handler) AddBlocks(ctx context.Context, cmd AddBlocksCommand) (dto.DateRangeChange, error) {
	unit, _, dr, err := h.prepare(ctx, cmd.ResourceID, cmd.From, cmd.To)
	if err != nil {
		return dto.DateRangeChange{}, err
	}
	blocks := availability.BlockRange(resources.ID(cmd.ResourceID), dr, cmd.Reason, h.now())
	evs := make([]events.DomainEvent, 0, len(blocks))
	for _, b := range blocks {
		if err := unit.Blocks().Save(ctx, b); err != nil {
			return dto.DateRangeChange{}, err
		}
		evs = append(evs, availability.DateBlockedEvent(b))
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs); err != nil {
		return dto.DateRangeChange{}, err
	}
	h.log(ctx, "dates blocked", "resource_id", cmd.ResourceID, "from", daterange.Key(dr.CheckIn), "to", daterange.Key(dr.CheckOut))
	return change(cmd.ResourceID, dr, len(blocks)), nil
}

func (h *Handler) RemoveBlocks(ctx context.Context, cmd RemoveBlocksCommand) (dto.DateRangeChange, error) {
	unit, _, dr, err := h.prepare(ctx, cmd.ResourceID, cmd.From, cmd.To)
	if err != nil {
		return dto.DateRangeChange{}, err
	}
	now := h.now()
	var evs []events.DomainEvent
	for _, d := range dr.Days() {
		err := unit.Blocks().Delete(ctx, resources.ID(cmd.ResourceID), d)
		if errors.Is(err, availability.ErrBlockNotFound) {
			continue
		}
		if err != nil {
			return dto.DateRangeChange{}, err
		}
		evs = append(evs, availability.DateReleasedEvent(resources.ID(cmd.ResourceID), d, now))
	}
	if len(evs) == 0 {
		return dto.DateRangeChange{}, domainerr.NotFound("blocked dates", fmt.Sprintf("%s %s..%s", cmd.ResourceID, daterange.Key(dr.CheckIn), daterange.Key(dr.CheckOut)))
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs); err != nil {
		return dto.DateRangeChange{}, err
	}
	return change(cmd.ResourceID, dr, len(evs)), nil
}

func (h *Handler) SetPrices(ctx context.Context, cmd SetPricesCommand) (dto.DateRangeChange, error) {
	unit, res, dr, err := h.prepare(ctx, cmd.ResourceID, cmd.From, cmd.To)
	if err != nil {
		return dto.DateRangeChange{}, err
	}
	price, err := money.New(cmd.Amount, cmd.Currency)
	if err != nil {
		return dto.DateRangeChange{}, domainerr.Validation("currency", err)
	}
	now := h.now()
	days := dr.Days()
	for _, d := range days {
		o, err := pricing.NewOverride(res, d, price, now)
		if err != nil {
			return dto.DateRangeChange{}, domainerr.Validation("price", err)
		}
		if err := unit.PriceOverrides().Save(ctx, o); err != nil {
			return dto.DateRangeChange{}, err
		}
	}
	h.log(ctx, "price overrides set", "resource_id", cmd.ResourceID, "dates", len(days), "price", price.String())
	return change(cmd.ResourceID, dr, len(days)), nil
}

func (h *Handler) ClearPrices(ctx context.Context, cmd ClearPricesCommand) (dto.DateRangeChange, error) {
	unit, _, dr, err := h.prepare(ctx, cmd.ResourceID, cmd.From, cmd.To)
	if err != nil {
		return dto.DateRangeChange{}, err
	}
	removed := 0
	for _, d := range dr.Days() {
		err := unit.PriceOverrides().Delete(ctx, resources.ID(cmd.ResourceID), d)
		if errors.Is(err, pricing.ErrOverrideNotFound) {
			continue
		}
		if err != nil {
			return dto.DateRangeChange{}, err
		}
		removed++
	}
	return change(cmd.ResourceID, dr, removed), nil
}

// prepare checks the resource exists and bounds the range like the calendar
// does.
func (h *Handler) prepare(ctx context.Context, resourceID string, from, to time.Time) (uow.UnitOfWork, *resources.Resource, daterange.DateRange, error) {
	unit, err := uow.MustFromContext(ctx)
	if err != nil {
		return nil, nil, daterange.DateRange{}, err
	}
	dr, err := daterange.New(from, to)
	if err != nil {
		return nil, nil, daterange.DateRange{}, domainerr.Validation("range", err)
	}
	maxDays := h.MaxDays
	if maxDays <= 0 {
		maxDays = availability.DefaultMaxDays
	}
	if dr.Nights() > maxDays {
		return nil, nil, daterange.DateRange{}, domainerr.Validation("range", availability.ErrRangeTooLong)
	}
	res, err := loadResource(ctx, unit, resourceID)
	if err != nil {
		return nil, nil, daterange.DateRange{}, err
	}
	return unit, res, dr, nil
}

func change(resourceID string, dr daterange.DateRange, affected int) dto.DateRangeChange {
	return dto.DateRangeChange{
		ResourceID: resourceID,
		From:       daterange.Key(dr.CheckIn),
		To:         daterange.Key(dr.CheckOut),
		Affected:   affected,
	}
}

var (
	_ commands.HandlerFunc[AddBlocksCommand, dto.DateRangeChange]    = (*Handler)(nil).AddBlocks
	_ commands.HandlerFunc[RemoveBlocksCommand, dto.DateRangeChange] = (*Handler)(nil).RemoveBlocks
	_ commands.HandlerFunc[SetPricesCommand, dto.DateRangeChange]    = (*Handler)(nil).SetPrices
	_ commands.HandlerFunc[ClearPricesCommand, dto.DateRangeChange]  = (*Handler)(nil).ClearPrices
)
