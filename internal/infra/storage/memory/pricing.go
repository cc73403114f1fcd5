package memory

import (
	"context"
	"sort"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
)

type blockRepo struct {
	u *Unit
}

func (r blockRepo) Blocks(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]availability.BlockedDate, error) {
	days := dr.Days()
	out := make([]availability.BlockedDate, 0)
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range days {
		k := keyOf(id, d)
		if staged, ok := r.u.blocks[k]; ok {
			if staged != nil {
				out = append(out, *staged)
			}
			continue
		}
		if b, ok := s.blocks[k]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r blockRepo) Save(ctx context.Context, block availability.BlockedDate) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	block.Date = daterange.Day(block.Date)
	r.u.blocks[keyOf(block.ResourceID, block.Date)] = &block
	return nil
}

func (r blockRepo) Delete(ctx context.Context, id resources.ID, date time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	k := keyOf(id, daterange.Day(date))
	if !r.exists(k) {
		return availability.ErrBlockNotFound
	}
	r.u.blocks[k] = nil
	return nil
}

func (r blockRepo) exists(k dayKey) bool {
	if staged, ok := r.u.blocks[k]; ok {
		return staged != nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[k]
	return ok
}

type overrideRepo struct {
	u *Unit
}

func (r overrideRepo) Overrides(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]pricing.PriceOverride, error) {
	out := make([]pricing.PriceOverride, 0)
	s := r.u.store
	s.mu.RLock()
	for _, d := range dr.Days() {
		k := keyOf(id, d)
		if staged, ok := r.u.overrides[k]; ok {
			if staged != nil {
				out = append(out, *staged)
			}
			continue
		}
		if o, ok := s.overrides[k]; ok {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r overrideRepo) Save(ctx context.Context, override pricing.PriceOverride) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	override.Date = daterange.Day(override.Date)
	r.u.overrides[keyOf(override.ResourceID, override.Date)] = &override
	return nil
}

func (r overrideRepo) Delete(ctx context.Context, id resources.ID, date time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	k := keyOf(id, daterange.Day(date))
	if staged, ok := r.u.overrides[k]; ok {
		if staged == nil {
			return pricing.ErrOverrideNotFound
		}
	} else {
		s := r.u.store
		s.mu.RLock()
		_, found := s.overrides[k]
		s.mu.RUnlock()
		if !found {
			return pricing.ErrOverrideNotFound
		}
	}
	r.u.overrides[k] = nil
	return nil
}
