package memory

import (
	"context"
	"fmt"
	"sort"

	"staybook/internal/domain/guest"
	"staybook/internal/domain/reservation"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

func transientStale(what string) error {
	return domainerr.Transient("memory commit", fmt.Errorf("%w: %s", ErrStaleVersion, what))
}

func copyResource(r *resources.Resource) *resources.Resource {
	cp := *r
	cp.Slots = append([]string(nil), r.Slots...)
	cp.DiscardEvents()
	return &cp
}

func copyReservation(r *reservation.Reservation) *reservation.Reservation {
	cp := *r
	cp.Price = r.Price.Copy()
	cp.DiscardEvents()
	return &cp
}

func copyGuest(g *guest.Guest) *guest.Guest {
	cp := *g
	return &cp
}

type resourceRepo struct {
	u *Unit
}

// ByID returns a domainerr.NotFoundError for unknown ids.
func (r resourceRepo) ByID(ctx context.Context, id resources.ID) (*resources.Resource, error) {
	if st, ok := r.u.resources[id]; ok {
		return copyResource(st.r), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[id]
	if !ok {
		return nil, domainerr.NotFound("resource", string(id))
	}
	return copyResource(res), nil
}

// Save rejects a resource whose version no longer matches the committed or
// staged copy.
func (r resourceRepo) Save(ctx context.Context, res *resources.Resource) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	base := int64(0)
	s := r.u.store
	s.mu.RLock()
	if committed, ok := s.resources[res.ID]; ok {
		base = committed.Version
	}
	s.mu.RUnlock()

	expected := base
	if st, ok := r.u.resources[res.ID]; ok {
		expected = st.r.Version
		base = st.base
	}
	if res.Version != expected {
		return transientStale("resource " + string(res.ID))
	}
	res.Version++
	r.u.resources[res.ID] = stagedResource{r: copyResource(res), base: base}
	return nil
}

// Search returns resources that satisfy the provided filters.
func (r resourceRepo) Search(ctx context.Context, params resources.SearchParams) (resources.SearchResult, error) {
	s := r.u.store
	s.mu.RLock()
	candidates := make([]*resources.Resource, 0, len(s.resources)+len(r.u.resources))
	for id, res := range s.resources {
		if _, ok := r.u.resources[id]; ok {
			continue
		}
		candidates = append(candidates, copyResource(res))
	}
	s.mu.RUnlock()
	for _, st := range r.u.resources {
		candidates = append(candidates, copyResource(st.r))
	}
	if err := ctx.Err(); err != nil {
		return resources.SearchResult{}, err
	}
	return params.Page(candidates), nil
}

type reservationRepo struct {
	u *Unit
}

func (r reservationRepo) current(id reservation.ID) (*reservation.Reservation, bool) {
	if st, ok := r.u.reservations[id]; ok {
		return st.r, true
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.reservations[id]
	return res, ok
}

func (r reservationRepo) ByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	res, ok := r.current(id)
	if !ok {
		return nil, domainerr.NotFound("reservation", string(id))
	}
	return copyReservation(res), nil
}

// Save inserts or updates a reservation. Updates must carry the version that
// was loaded; the stored version is bumped on success.
func (r reservationRepo) Save(ctx context.Context, res *reservation.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	base := int64(0)
	s := r.u.store
	s.mu.RLock()
	committed, exists := s.reservations[res.ID]
	if exists {
		base = committed.Version
	}
	owner, keyTaken := s.keys[res.IdempotencyKey]
	s.mu.RUnlock()

	if res.IdempotencyKey != "" {
		if keyTaken && owner != res.ID {
			return reservation.ErrDuplicate
		}
		for id, st := range r.u.reservations {
			if id != res.ID && st.r.IdempotencyKey == res.IdempotencyKey {
				return reservation.ErrDuplicate
			}
		}
	}
	expected := base
	if st, ok := r.u.reservations[res.ID]; ok {
		expected = st.r.Version
		base = st.base
	}
	if res.Version != expected {
		return transientStale("reservation " + string(res.ID))
	}
	res.Version++
	r.u.reservations[res.ID] = stagedReservation{r: copyReservation(res), base: base}
	return nil
}

func (r reservationRepo) snapshot() []*reservation.Reservation {
	s := r.u.store
	s.mu.RLock()
	out := make([]*reservation.Reservation, 0, len(s.reservations)+len(r.u.reservations))
	for id, res := range s.reservations {
		if _, ok := r.u.reservations[id]; ok {
			continue
		}
		out = append(out, res)
	}
	s.mu.RUnlock()
	for _, st := range r.u.reservations {
		out = append(out, st.r)
	}
	return out
}

func (r reservationRepo) Overlapping(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]*reservation.Reservation, error) {
	var out []*reservation.Reservation
	for _, res := range r.snapshot() {
		if res.ResourceID != id || !res.Active() || !res.Range.Overlaps(dr) {
			continue
		}
		out = append(out, copyReservation(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r reservationRepo) ByIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	if key == "" {
		return nil, nil
	}
	for _, st := range r.u.reservations {
		if st.r.IdempotencyKey == key {
			return copyReservation(st.r), nil
		}
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[key]
	if !ok {
		return nil, nil
	}
	return copyReservation(s.reservations[id]), nil
}

func (r reservationRepo) ListByGuest(ctx context.Context, guestID string) ([]*reservation.Reservation, error) {
	var out []*reservation.Reservation
	for _, res := range r.snapshot() {
		if res.Payer.GuestID == guestID {
			out = append(out, copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// LockLedger holds the resource's ledger mutex until the unit finishes.
func (r reservationRepo) LockLedger(ctx context.Context, id resources.ID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.locked[id]; ok {
		return nil
	}
	l := r.u.store.ledger(id)
	if !l.TryLock() {
		acquired := make(chan struct{})
		go func() {
			l.Lock()
			close(acquired)
		}()
		select {
		case <-acquired:
		case <-ctx.Done():
			go func() {
				<-acquired
				l.Unlock()
			}()
			return domainerr.Transient("lock ledger", ctx.Err())
		}
	}
	r.u.locked[id] = l
	return nil
}

type guestRepo struct {
	u *Unit
}

func (r guestRepo) ByEmail(ctx context.Context, email string) (*guest.Guest, error) {
	normalized, err := guest.NormalizeEmail(email)
	if err != nil {
		return nil, nil
	}
	if g, ok := r.u.guests[normalized]; ok {
		return copyGuest(g), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guests[normalized]
	if !ok {
		return nil, nil
	}
	return copyGuest(g), nil
}

func (r guestRepo) Save(ctx context.Context, g *guest.Guest) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.guests[g.Email] = copyGuest(g)
	return nil
}
