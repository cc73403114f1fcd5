package availability

import (
	"errors"
	"time"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
)

var ErrDateOutsideIndex = errors.New("availability: date outside indexed range")

// Claim is the anonymous footprint of a non-cancelled reservation: what it
// occupies, never who made it.
type Claim struct {
	Range     daterange.DateRange
	Slot      string
	PartySize int
}

// DayState is the occupancy of one date.
type DayState struct {
	Date        time.Time
	BookedUnits int
	Blocked     bool
	BlockReason string
}

// Index is the per-date occupancy of one resource lane (a slot, or the whole
// resource when it has none) over a range.
type Index struct {
	ResourceID resources.ID
	Slot       string
	Range      daterange.DateRange
	Days       []DayState
	pos        map[string]int
}

// BuildIndex folds claims and blocks into one DayState per date of dr. Claims
// outside dr or for another slot are ignored; blocks apply to every slot.
func BuildIndex(resourceID resources.ID, slot string, dr daterange.DateRange, claims []Claim, blocks []BlockedDate) (Index, error) {
	if err := dr.Validate(); err != nil {
		return Index{}, err
	}
	days := dr.Days()
	ix := Index{
		ResourceID: resourceID,
		Slot:       slot,
		Range:      dr,
		Days:       make([]DayState, len(days)),
		pos:        make(map[string]int, len(days)),
	}
	for i, d := range days {
		ix.Days[i] = DayState{Date: d}
		ix.pos[daterange.Key(d)] = i
	}
	for _, c := range claims {
		if c.Slot != slot || c.PartySize <= 0 {
			continue
		}
		overlap, ok := c.Range.Intersect(dr)
		if !ok {
			continue
		}
		for _, d := range overlap.Days() {
			ix.Days[ix.pos[daterange.Key(d)]].BookedUnits += c.PartySize
		}
	}
	for _, b := range blocks {
		if b.ResourceID != "" && b.ResourceID != resourceID {
			continue
		}
		i, ok := ix.pos[daterange.Key(b.Date)]
		if !ok {
			continue
		}
		ix.Days[i].Blocked = true
		if ix.Days[i].BlockReason == "" {
			ix.Days[i].BlockReason = b.Reason
		}
	}
	return ix, nil
}

// Day returns the state of a date.
func (ix Index) Day(date time.Time) (DayState, bool) {
	i, ok := ix.pos[daterange.Key(date)]
	if !ok {
		return DayState{}, false
	}
	return ix.Days[i], true
}
