package dto

import (
	"time"

	"staybook/internal/domain/resources"
)

type Resource struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	City      string    `json:"city,omitempty"`
	Capacity  int       `json:"capacity"`
	BasePrice Money     `json:"base_price"`
	Slots     []string  `json:"slots,omitempty"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func MapResource(r *resources.Resource) Resource {
	if r == nil {
		return Resource{}
	}
	return Resource{
		ID:        string(r.ID),
		Kind:      string(r.Kind),
		Title:     r.Title,
		City:      r.City,
		Capacity:  r.Capacity,
		BasePrice: MapMoney(r.BasePrice),
		Slots:     append([]string(nil), r.Slots...),
		Active:    r.Active,
		UpdatedAt: r.UpdatedAt,
	}
}

// DateRangeChange reports how many dates an admin range command touched.
type DateRangeChange struct {
	ResourceID string `json:"resource_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Affected   int    `json:"affected"`
}
