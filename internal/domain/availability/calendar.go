package availability

import (
	"context"
	"errors"
	"fmt"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

// DefaultMaxDays bounds how many dates a single index may materialize.
const DefaultMaxDays = 366

var (
	ErrRangeTooLong     = errors.New("availability: range exceeds the maximum number of days")
	ErrCalendarMisusage = errors.New("availability: calendar requires resource, claim and block readers")
)

// ClaimReader lists the non-cancelled claims of a resource overlapping a range.
type ClaimReader interface {
	ActiveClaims(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]Claim, error)
}

// ResourceReader loads a resource by id.
type ResourceReader interface {
	ByID(ctx context.Context, id resources.ID) (*resources.Resource, error)
}

// Calendar builds indexes from persisted records. It is read-only and does not
// swallow store errors.
type Calendar struct {
	Resources ResourceReader
	Claims    ClaimReader
	Blocks    BlockRepository
	MaxDays   int
}

// Lane is a loaded resource together with the slot an index is built for.
type Lane struct {
	Resource *resources.Resource
	Slot     string
}

// Resolve loads the resource and validates the slot for its kind.
func (c Calendar) Resolve(ctx context.Context, id resources.ID, slot string) (Lane, error) {
	if c.Resources == nil {
		return Lane{}, ErrCalendarMisusage
	}
	if id == "" {
		return Lane{}, domainerr.Validationf("resource_id", "resource id is required")
	}
	resource, err := c.Resources.ByID(ctx, id)
	if err != nil {
		return Lane{}, err
	}
	if resource == nil {
		return Lane{}, domainerr.NotFound("resource", string(id))
	}
	if !resource.Active {
		return Lane{}, domainerr.Unavailable("resource", string(id))
	}
	normalized, err := resource.RequireSlot(slot)
	if err != nil {
		return Lane{}, domainerr.Validation("slot", err)
	}
	return Lane{Resource: resource, Slot: normalized}, nil
}

// Build materializes the index of one lane over dr.
func (c Calendar) Build(ctx context.Context, lane Lane, dr daterange.DateRange) (Index, error) {
	if c.Claims == nil || c.Blocks == nil {
		return Index{}, ErrCalendarMisusage
	}
	if err := dr.Validate(); err != nil {
		return Index{}, domainerr.Validation("range", err)
	}
	if max := c.maxDays(); dr.Nights() > max {
		return Index{}, domainerr.Validation("range", fmt.Errorf("%w (%d)", ErrRangeTooLong, max))
	}
	claims, err := c.Claims.ActiveClaims(ctx, lane.Resource.ID, dr)
	if err != nil {
		return Index{}, err
	}
	blocks, err := c.Blocks.Blocks(ctx, lane.Resource.ID, dr)
	if err != nil {
		return Index{}, err
	}
	return BuildIndex(lane.Resource.ID, lane.Slot, dr, claims, blocks)
}

// BuildFor resolves the lane and builds its index in one call.
func (c Calendar) BuildFor(ctx context.Context, id resources.ID, slot string, dr daterange.DateRange) (Index, Lane, error) {
	lane, err := c.Resolve(ctx, id, slot)
	if err != nil {
		return Index{}, Lane{}, err
	}
	ix, err := c.Build(ctx, lane, dr)
	if err != nil {
		return Index{}, Lane{}, err
	}
	return ix, lane, nil
}

func (c Calendar) maxDays() int {
	if c.MaxDays <= 0 {
		return DefaultMaxDays
	}
	return c.MaxDays
}
