// Package payments turns payment collaborator outcomes into reservation
// lifecycle commands. The same mapping serves the HTTP callback and the
// payment events consumer.
package payments

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/reservations"
	"staybook/internal/domain/shared/domainerr"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var ErrUnknownStatus = errors.New("payments: unknown outcome status")

// Outcome reports the result of collecting payment for a reservation.
type Outcome struct {
	EventID       string `json:"id"`
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
	PaymentRef    string `json:"payment_ref"`
	Reason        string `json:"reason,omitempty"`
}

// Apply confirms the reservation on success and cancels it otherwise.
func Apply(ctx context.Context, bus commands.Bus, o Outcome) (dto.Reservation, error) {
	if strings.TrimSpace(o.ReservationID) == "" {
		return dto.Reservation{}, domainerr.Validationf("reservation_id", "reservation id is required")
	}
	switch strings.ToLower(strings.TrimSpace(o.Status)) {
	case StatusSucceeded:
		return commands.Dispatch[reservations.ConfirmCommand, dto.Reservation](ctx, bus, reservations.ConfirmCommand{
			ReservationID: o.ReservationID,
			PaymentRef:    o.PaymentRef,
		})
	case StatusFailed, StatusCancelled:
		reason := "payment " + strings.ToLower(strings.TrimSpace(o.Status))
		if r := strings.TrimSpace(o.Reason); r != "" {
			reason += ": " + r
		}
		return commands.Dispatch[reservations.CancelCommand, dto.Reservation](ctx, bus, reservations.CancelCommand{
			ReservationID: o.ReservationID,
			Reason:        reason,
		})
	default:
		return dto.Reservation{}, domainerr.Validation("status", ErrUnknownStatus)
	}
}
