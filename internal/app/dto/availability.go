package dto

import (
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/shared/domainerr"
)

type WindowDay struct {
	Date              string `json:"date"`
	Available         bool   `json:"available"`
	RemainingCapacity int    `json:"remaining_capacity"`
	Price             Money  `json:"price"`
	Reason            string `json:"reason,omitempty"`
	BlockReason       string `json:"block_reason,omitempty"`
}

type Window struct {
	ResourceID string      `json:"resource_id"`
	Slot       string      `json:"slot,omitempty"`
	PartySize  int         `json:"party_size"`
	Days       []WindowDay `json:"days"`
}

func MapWindow(resourceID string, w availability.Window) Window {
	days := make([]WindowDay, 0, len(w.Days))
	for _, d := range w.Days {
		days = append(days, WindowDay{
			Date:              d.Date.Format(time.DateOnly),
			Available:         d.Available,
			RemainingCapacity: d.RemainingCapacity,
			Price:             MapMoney(d.Price),
			Reason:            string(d.Reason),
			BlockReason:       d.BlockReason,
		})
	}
	return Window{ResourceID: resourceID, Slot: w.Slot, PartySize: w.PartySize, Days: days}
}

// Conflict is the client facing detail of a rejected date. It never names
// other reservations.
type Conflict struct {
	Date        string `json:"date"`
	Slot        string `json:"slot,omitempty"`
	Reason      string `json:"reason"`
	BlockReason string `json:"block_reason,omitempty"`
	Requested   int    `json:"requested"`
	Remaining   int    `json:"remaining"`
}

func MapConflict(c *domainerr.ConflictError) *Conflict {
	if c == nil {
		return nil
	}
	return &Conflict{
		Date:        c.Date.Format(time.DateOnly),
		Slot:        c.Slot,
		Reason:      string(c.Reason),
		BlockReason: c.BlockReason,
		Requested:   c.Requested,
		Remaining:   c.Remaining,
	}
}

type AvailabilityCheck struct {
	ResourceID string    `json:"resource_id"`
	Slot       string    `json:"slot,omitempty"`
	Available  bool      `json:"available"`
	Conflict   *Conflict `json:"conflict,omitempty"`
	Quote      *Quote    `json:"quote,omitempty"`
}

type SearchItem struct {
	Resource          Resource `json:"resource"`
	Slot              string   `json:"slot,omitempty"`
	IsAvailable       bool     `json:"is_available"`
	RemainingCapacity int      `json:"remaining_capacity"`
	Total             *Money   `json:"total,omitempty"`
}

type SearchResult struct {
	Items  []SearchItem `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
