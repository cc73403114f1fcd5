package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/guest"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing pool")

type Factory struct {
	Pool *pgxpool.Pool
}

// Begin opens a read committed transaction. Admission correctness comes from
// the resource row lock taken by LockLedger, not from the isolation level.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Pool == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, classify("postgres begin", err)
	}
	return &Unit{tx: tx, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	tx       pgx.Tx
	readOnly bool
}

func (u *Unit) Resources() resources.Repository {
	return resourceRepo{u: u}
}

func (u *Unit) Reservations() reservation.Repository {
	return reservationRepo{u: u}
}

func (u *Unit) Blocks() availability.BlockRepository {
	return blockRepo{u: u}
}

func (u *Unit) PriceOverrides() pricing.OverrideRepository {
	return overrideRepo{u: u}
}

func (u *Unit) Guests() guest.Repository {
	return guestRepo{u: u}
}

func (u *Unit) Outbox() outbox.Outbox {
	return unitOutbox{u: u}
}

func (u *Unit) writable() error {
	if u.readOnly {
		return uow.ErrReadOnly
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	return classify("postgres commit", u.tx.Commit(ctx))
}

// Rollback is a no-op after Commit.
func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

var _ uow.UoWFactory = Factory{}
