package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
)

var ErrBlockNotFound = errors.New("availability: blocked date not found")

const DefaultBlockReason = "owner_block"

// BlockedDate marks a resource unavailable on one date regardless of load.
type BlockedDate struct {
	ResourceID resources.ID
	Date       time.Time
	Reason     string
	CreatedAt  time.Time
}

// BlockRepository stores at most one block per (resource, date). Delete
// returns ErrBlockNotFound when the date was not blocked.
type BlockRepository interface {
	Blocks(ctx context.Context, id resources.ID, dr daterange.DateRange) ([]BlockedDate, error)
	Save(ctx context.Context, block BlockedDate) error
	Delete(ctx context.Context, id resources.ID, date time.Time) error
}

// BlockRange expands a range into one BlockedDate per night.
func BlockRange(id resources.ID, dr daterange.DateRange, reason string, now time.Time) []BlockedDate {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBlockReason
	}
	days := dr.Days()
	out := make([]BlockedDate, 0, len(days))
	for _, d := range days {
		out = append(out, BlockedDate{ResourceID: id, Date: d, Reason: reason, CreatedAt: now.UTC()})
	}
	return out
}
