package uow

import (
	"context"
	"errors"

	"staybook/internal/app/outbox"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/guest"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
)

// ErrReadOnly is returned by repositories of a read-only unit on write.
var ErrReadOnly = errors.New("uow: unit of work is read-only")

// UnitOfWork coordinates repositories inside one transaction. Everything
// written through it, outbox records included, becomes visible on Commit or
// not at all.
type UnitOfWork interface {
	Resources() resources.Repository
	Reservations() reservation.Repository
	Blocks() availability.BlockRepository
	PriceOverrides() pricing.OverrideRepository
	Guests() guest.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// Calendar wires the availability calendar to the repositories of a unit.
func Calendar(unit UnitOfWork, maxDays int) availability.Calendar {
	return availability.Calendar{
		Resources: unit.Resources(),
		Claims:    reservation.ClaimReader(unit.Reservations()),
		Blocks:    unit.Blocks(),
		MaxDays:   maxDays,
	}
}

// Pricing returns a resolver reading overrides through the unit.
func Pricing(unit UnitOfWork) pricing.Resolver {
	return pricing.Resolver{Overrides: unit.PriceOverrides()}
}
