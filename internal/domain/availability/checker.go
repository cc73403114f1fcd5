package availability

import (
	"errors"
	"slices"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

var (
	ErrPartySize = errors.New("availability: party size must be positive")
	ErrCapacity  = errors.New("availability: resource capacity must be positive")
	ErrSlotInUse = errors.New("availability: slot still holds reservations")
)

// DayDecision is the admission outcome for one date.
type DayDecision struct {
	Date        time.Time
	Admitted    bool
	Reason      domainerr.ConflictReason
	BlockReason string
	Remaining   int
}

// Decision is the outcome of a full request. A stay is admitted only when
// every night is.
type Decision struct {
	Admitted  bool
	Slot      string
	PartySize int
	Days      []DayDecision
}

// FirstConflict returns the earliest rejected date.
func (d Decision) FirstConflict() (DayDecision, bool) {
	for _, day := range d.Days {
		if !day.Admitted {
			return day, true
		}
	}
	return DayDecision{}, false
}

// Err returns a ConflictError for the first rejected date, or nil.
func (d Decision) Err() error {
	day, ok := d.FirstConflict()
	if !ok {
		return nil
	}
	return &domainerr.ConflictError{
		Date:        day.Date,
		Slot:        d.Slot,
		Reason:      day.Reason,
		BlockReason: day.BlockReason,
		Requested:   d.PartySize,
		Remaining:   day.Remaining,
	}
}

// Check evaluates a proposed range and party size against the index. Blocked
// dates are rejected even when capacity would admit them.
func Check(ix Index, proposed daterange.DateRange, partySize, capacity int) (Decision, error) {
	if err := proposed.Validate(); err != nil {
		return Decision{}, domainerr.Validation("range", err)
	}
	if partySize <= 0 {
		return Decision{}, domainerr.Validation("party_size", ErrPartySize)
	}
	if capacity <= 0 {
		return Decision{}, domainerr.Validation("capacity", ErrCapacity)
	}
	if !ix.Range.Contains(proposed) {
		return Decision{}, domainerr.Validation("range", ErrDateOutsideIndex)
	}

	days := proposed.Days()
	decision := Decision{Admitted: true, Slot: ix.Slot, PartySize: partySize, Days: make([]DayDecision, 0, len(days))}
	for _, d := range days {
		state, _ := ix.Day(d)
		dd := DayDecision{Date: d, Admitted: true, Remaining: Remaining(state, capacity)}
		switch {
		case state.Blocked:
			dd.Admitted = false
			dd.Reason = domainerr.ReasonBlocked
			dd.BlockReason = state.BlockReason
		case state.BookedUnits+partySize > capacity:
			dd.Admitted = false
			dd.Reason = domainerr.ReasonAtCapacity
		}
		if !dd.Admitted {
			decision.Admitted = false
		}
		decision.Days = append(decision.Days, dd)
	}
	return decision, nil
}

// Remaining is the free capacity of a date; zero when blocked.
func Remaining(state DayState, capacity int) int {
	if state.Blocked {
		return 0
	}
	left := capacity - state.BookedUnits
	if left < 0 {
		return 0
	}
	return left
}

// Refit checks that claims from the given window still fit a resource
// reshaped to lanes and capacity. A claim on a lane the resource no longer
// has is a validation error on "slots"; the earliest overbooked date is
// returned as an at_capacity conflict.
func Refit(window daterange.DateRange, claims []Claim, lanes []string, capacity int) error {
	if capacity <= 0 {
		return domainerr.Validation("capacity", ErrCapacity)
	}
	type laneDay struct {
		date time.Time
		slot string
	}
	load := make(map[laneDay]int)
	for _, c := range claims {
		if c.PartySize <= 0 {
			continue
		}
		overlap, ok := c.Range.Intersect(window)
		if !ok {
			continue
		}
		if !slices.Contains(lanes, c.Slot) {
			return domainerr.Validationf("slots", "%w: %q", ErrSlotInUse, c.Slot)
		}
		for _, d := range overlap.Days() {
			load[laneDay{date: d, slot: c.Slot}] += c.PartySize
		}
	}
	var worst *laneDay
	for k, units := range load {
		if units <= capacity {
			continue
		}
		if worst == nil || k.date.Before(worst.date) || (k.date.Equal(worst.date) && k.slot < worst.slot) {
			worst = &k
		}
	}
	if worst == nil {
		return nil
	}
	return &domainerr.ConflictError{
		Date:      worst.date,
		Slot:      worst.slot,
		Reason:    domainerr.ReasonAtCapacity,
		Requested: load[*worst],
		Remaining: capacity,
	}
}
