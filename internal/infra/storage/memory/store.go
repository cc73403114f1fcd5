package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/guest"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/domainerr"
)

var (
	// ErrUnitClosed is returned when a committed or rolled back unit is reused.
	ErrUnitClosed = errors.New("memory: unit of work already finished")
	// ErrStaleVersion is returned when a record changed after it was loaded.
	ErrStaleVersion = errors.New("memory: record was modified concurrently")
)

type dayKey struct {
	resource resources.ID
	day      int64
}

func keyOf(id resources.ID, date time.Time) dayKey {
	return dayKey{resource: id, day: date.UTC().Unix()}
}

type outboxEntry struct {
	record      outbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	claimedBy   string
	lastError   string
}

// Store keeps every aggregate in process memory. Writes go through a Unit
// and become visible on Commit.
type Store struct {
	mu           sync.RWMutex
	resources    map[resources.ID]*resources.Resource
	reservations map[reservation.ID]*reservation.Reservation
	keys         map[string]reservation.ID
	blocks       map[dayKey]availability.BlockedDate
	overrides    map[dayKey]pricing.PriceOverride
	guests       map[string]*guest.Guest
	outbox       []*outboxEntry

	ledgerMu sync.Mutex
	ledgers  map[resources.ID]*sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		resources:    make(map[resources.ID]*resources.Resource),
		reservations: make(map[reservation.ID]*reservation.Reservation),
		keys:         make(map[string]reservation.ID),
		blocks:       make(map[dayKey]availability.BlockedDate),
		overrides:    make(map[dayKey]pricing.PriceOverride),
		guests:       make(map[string]*guest.Guest),
		ledgers:      make(map[resources.ID]*sync.Mutex),
		now:          time.Now,
	}
}

// Begin opens a unit of work over the store.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Unit{
		store:        s,
		readOnly:     opts.ReadOnly,
		locked:       make(map[resources.ID]*sync.Mutex),
		resources:    make(map[resources.ID]stagedResource),
		reservations: make(map[reservation.ID]stagedReservation),
		blocks:       make(map[dayKey]*availability.BlockedDate),
		overrides:    make(map[dayKey]*pricing.PriceOverride),
		guests:       make(map[string]*guest.Guest),
	}, nil
}

func (s *Store) ledger(id resources.ID) *sync.Mutex {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	l, ok := s.ledgers[id]
	if !ok {
		l = &sync.Mutex{}
		s.ledgers[id] = l
	}
	return l
}

type stagedResource struct {
	r    *resources.Resource
	base int64
}

type stagedReservation struct {
	r    *reservation.Reservation
	base int64
}

// Unit stages writes and applies them atomically on Commit. A nil entry in
// the block and override maps stages a delete.
type Unit struct {
	store    *Store
	readOnly bool
	done     bool

	locked       map[resources.ID]*sync.Mutex
	resources    map[resources.ID]stagedResource
	reservations map[reservation.ID]stagedReservation
	blocks       map[dayKey]*availability.BlockedDate
	overrides    map[dayKey]*pricing.PriceOverride
	guests       map[string]*guest.Guest
	records      []outbox.EventRecord
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
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return uow.ErrReadOnly
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	defer u.release()
	if u.readOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range u.resources {
		var current int64
		if existing, ok := s.resources[id]; ok {
			current = existing.Version
		}
		if current != st.base {
			return transientStale("resource " + string(id))
		}
	}
	for id, st := range u.reservations {
		var current int64
		if existing, ok := s.reservations[id]; ok {
			current = existing.Version
		}
		if current != st.base {
			return transientStale("reservation " + string(id))
		}
		if key := st.r.IdempotencyKey; key != "" {
			if owner, ok := s.keys[key]; ok && owner != id {
				return domainerr.Transient("memory commit", reservation.ErrDuplicate)
			}
		}
	}
	for id, st := range u.resources {
		s.resources[id] = st.r
	}
	for id, st := range u.reservations {
		s.reservations[id] = st.r
		if st.r.IdempotencyKey != "" {
			s.keys[st.r.IdempotencyKey] = id
		}
	}
	for k, b := range u.blocks {
		if b == nil {
			delete(s.blocks, k)
			continue
		}
		s.blocks[k] = *b
	}
	for k, o := range u.overrides {
		if o == nil {
			delete(s.overrides, k)
			continue
		}
		s.overrides[k] = *o
	}
	for email, g := range u.guests {
		s.guests[email] = g
	}
	now := s.now().UTC()
	for _, rec := range u.records {
		s.outbox = append(s.outbox, &outboxEntry{record: rec, state: stateNew, nextAttempt: now})
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.release()
	return nil
}

func (u *Unit) release() {
	u.done = true
	for id, l := range u.locked {
		l.Unlock()
		delete(u.locked, id)
	}
}

var _ uow.UoWFactory = (*Store)(nil)
var _ uow.UnitOfWork = (*Unit)(nil)
