package availability

import (
	"time"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
	"staybook/internal/domain/shared/money"
)

// WindowDay is one row of an availability window.
type WindowDay struct {
	Date              time.Time
	Available         bool
	RemainingCapacity int
	Price             money.Money
	Reason            domainerr.ConflictReason
	BlockReason       string
}

// Window is the derived per-date view of a resource lane. It is computed on
// demand and never stored.
type Window struct {
	Slot      string
	PartySize int
	Days      []WindowDay
}

// NewWindow combines an index with resolved rates. A date is available when
// the party fits on that date alone.
func NewWindow(ix Index, capacity, partySize int, rates []pricing.Rate) Window {
	if partySize <= 0 {
		partySize = 1
	}
	priceByDay := make(map[string]money.Money, len(rates))
	for _, r := range rates {
		priceByDay[daterange.Key(r.Date)] = r.Price
	}
	w := Window{Slot: ix.Slot, PartySize: partySize, Days: make([]WindowDay, 0, len(ix.Days))}
	for _, state := range ix.Days {
		day := WindowDay{
			Date:              state.Date,
			RemainingCapacity: Remaining(state, capacity),
			Price:             priceByDay[daterange.Key(state.Date)],
			BlockReason:       state.BlockReason,
		}
		switch {
		case state.Blocked:
			day.Reason = domainerr.ReasonBlocked
		case state.BookedUnits+partySize > capacity:
			day.Reason = domainerr.ReasonAtCapacity
		default:
			day.Available = true
		}
		w.Days = append(w.Days, day)
	}
	return w
}

// AllAvailable reports whether every date of the window admits the party.
func (w Window) AllAvailable() bool {
	if len(w.Days) == 0 {
		return false
	}
	for _, d := range w.Days {
		if !d.Available {
			return false
		}
	}
	return true
}

// MinRemaining is the bottleneck capacity over the window.
func (w Window) MinRemaining() int {
	if len(w.Days) == 0 {
		return 0
	}
	least := w.Days[0].RemainingCapacity
	for _, d := range w.Days[1:] {
		if d.RemainingCapacity < least {
			least = d.RemainingCapacity
		}
	}
	return least
}
