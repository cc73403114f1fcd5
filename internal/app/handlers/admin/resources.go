package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/money"
)

const (
	UpsertResourceKey = "admin.resource.upsert"
	AddBlocksKey      = "admin.blocks.add"
	RemoveBlocksKey   = "admin.blocks.remove"
	SetPricesKey      = "admin.prices.set"
	ClearPricesKey    = "admin.prices.clear"
)

// UpsertResourceCommand creates a resource or replaces its attributes.
type UpsertResourceCommand struct {
	ID        string   `json:"id" validate:"required,max=64"`
	Kind      string   `json:"kind" validate:"required,oneof=property activity"`
	Title     string   `json:"title" validate:"required,max=200"`
	City      string   `json:"city" validate:"max=100"`
	Capacity  int      `json:"capacity" validate:"gte=0,lte=10000"`
	BasePrice int64    `json:"base_price" validate:"gte=0"`
	Currency  string   `json:"currency" validate:"required,len=3"`
	Slots     []string `json:"slots" validate:"omitempty,dive,slot"`
	Active    bool     `json:"active"`
}

func (c UpsertResourceCommand) Key() string { return UpsertResourceKey }

// Handler serves the admin CRUD surface. The booking core only reads what it
// writes.
type Handler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	MaxDays int
	Clock   func() time.Time
}

func (h *Handler) UpsertResource(ctx context.Context, cmd UpsertResourceCommand) (dto.Resource, error) {
	unit, err := uow.MustFromContext(ctx)
	if err != nil {
		return dto.Resource{}, err
	}
	price, err := money.New(cmd.BasePrice, cmd.Currency)
	if err != nil {
		return dto.Resource{}, domainerr.Validation("currency", err)
	}
	kind, err := resources.ParseKind(cmd.Kind)
	if err != nil {
		return dto.Resource{}, domainerr.Validation("kind", err)
	}
	params := resources.Params{
		ID:        resources.ID(strings.TrimSpace(cmd.ID)),
		Kind:      kind,
		Title:     cmd.Title,
		City:      cmd.City,
		Capacity:  cmd.Capacity,
		BasePrice: price,
		Slots:     cmd.Slots,
		Active:    cmd.Active,
		Now:       h.now(),
	}

	// Postgres locks the resource row, so a missing row means a new resource.
	if err := unit.Reservations().LockLedger(ctx, params.ID); err != nil && !errors.Is(err, domainerr.ErrNotFound) {
		return dto.Resource{}, err
	}
	repo := unit.Resources()
	existing, err := repo.ByID(ctx, params.ID)
	switch {
	case errors.Is(err, domainerr.ErrNotFound):
		existing = nil
	case err != nil:
		return dto.Resource{}, err
	}

	var res *resources.Resource
	if existing == nil {
		res, err = resources.NewResource(params)
	} else {
		res = existing
		err = res.Update(params)
	}
	if err != nil {
		return dto.Resource{}, domainerr.Validation("resource", err)
	}
	if existing != nil {
		if err := h.refit(ctx, unit, res); err != nil {
			h.warn(ctx, "resource change rejected", "resource_id", res.ID, "capacity", res.Capacity, "error", err)
			return dto.Resource{}, err
		}
	}
	if err := repo.Save(ctx, res); err != nil {
		return dto.Resource{}, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, res.DrainEvents()); err != nil {
		return dto.Resource{}, err
	}
	h.log(ctx, "resource upserted", "resource_id", res.ID, "kind", res.Kind, "active", res.Active)
	return dto.MapResource(res), nil
}

// refitHorizonYears bounds how far ahead reservations are checked against a
// reshaped resource.
const refitHorizonYears = 10

// refit rejects a capacity or slot change that live reservations from today
// on would no longer fit.
func (h *Handler) refit(ctx context.Context, unit uow.UnitOfWork, res *resources.Resource) error {
	today := daterange.Day(h.now())
	window := daterange.DateRange{CheckIn: today, CheckOut: today.AddDate(refitHorizonYears, 0, 0)}
	claims, err := reservation.ClaimReader(unit.Reservations()).ActiveClaims(ctx, res.ID, window)
	if err != nil {
		return err
	}
	return availability.Refit(window, claims, res.Lanes(), res.Capacity)
}

// loadResource returns the resource even when inactive; admins manage
// calendars of disabled resources too.
func loadResource(ctx context.Context, unit uow.UnitOfWork, id string) (*resources.Resource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domainerr.Validationf("resource_id", "resource id is required")
	}
	return unit.Resources().ByID(ctx, resources.ID(id))
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

func (h *Handler) log(ctx context.Context, msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, msg, args...)
	}
}

func (h *Handler) warn(ctx context.Context, msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.WarnContext(ctx, msg, args...)
	}
}

var _ commands.HandlerFunc[UpsertResourceCommand, dto.Resource] = (*Handler)(nil).UpsertResource
