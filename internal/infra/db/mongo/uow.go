package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/guest"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

// Begin starts a session and a snapshot transaction on it.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, classify("mongo begin", err)
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, classify("mongo begin", err)
	}
	return &Unit{db: f.DB, session: session, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool
	done     bool
}

func (u *Unit) Resources() resources.Repository {
	return resourceRepo{u: u, col: u.db.Collection(colResources)}
}

func (u *Unit) Reservations() reservation.Repository {
	return reservationRepo{u: u, col: u.db.Collection(colReservations), ledgers: u.db.Collection(colLedgers)}
}

func (u *Unit) Blocks() availability.BlockRepository {
	return blockRepo{u: u, col: u.db.Collection(colBlocks)}
}

func (u *Unit) PriceOverrides() pricing.OverrideRepository {
	return overrideRepo{u: u, col: u.db.Collection(colOverrides)}
}

func (u *Unit) Guests() guest.Repository {
	return guestRepo{u: u, col: u.db.Collection(colGuests)}
}

func (u *Unit) Outbox() outbox.Outbox {
	return unitOutbox{u: u, col: u.db.Collection(colOutbox)}
}

func (u *Unit) writable() error {
	if u.readOnly {
		return uow.ErrReadOnly
	}
	return nil
}

// Commit retries once when the server cannot tell whether the commit landed.
func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	err := u.session.CommitTransaction(ctx)
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("UnknownTransactionCommitResult") {
		err = u.session.CommitTransaction(ctx)
	}
	return classify("mongo commit", err)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// sessionCtx binds ctx to the unit's session when the caller did not go
// through uow.Attach.
func (u *Unit) sessionCtx(ctx context.Context) context.Context {
	if mongo.SessionFromContext(ctx) != nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
