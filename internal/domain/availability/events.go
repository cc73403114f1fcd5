package availability

import (
	"time"

	"staybook/internal/domain/resources"
)

type DateBlocked struct {
	ResourceID string
	Date       time.Time
	Reason     string
	At         time.Time
}

func (e DateBlocked) EventName() string     { return "availability.date_blocked" }
func (e DateBlocked) AggregateID() string   { return e.ResourceID }
func (e DateBlocked) OccurredAt() time.Time { return e.At }

type DateReleased struct {
	ResourceID string
	Date       time.Time
	At         time.Time
}

func (e DateReleased) EventName() string     { return "availability.date_released" }
func (e DateReleased) AggregateID() string   { return e.ResourceID }
func (e DateReleased) OccurredAt() time.Time { return e.At }

func DateBlockedEvent(b BlockedDate) DateBlocked {
	return DateBlocked{ResourceID: string(b.ResourceID), Date: b.Date, Reason: b.Reason, At: b.CreatedAt}
}

func DateReleasedEvent(id resources.ID, date, at time.Time) DateReleased {
	return DateReleased{ResourceID: string(id), Date: date, At: at.UTC()}
}
