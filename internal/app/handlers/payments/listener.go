package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/domainerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrMissingEventID = errors.New("payments: event id is required")

// Inbox deduplicates delivered events per consumer. An event is marked only
// once its outcome is applied, so a crash in between leads to a redelivery.
type Inbox interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type cloudEvent struct {
	ID   string              `json:"id"`
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// Decode reads an outcome from either a CloudEvents envelope or a bare
// outcome document. The envelope id wins over an id inside data.
func Decode(body []byte) (Outcome, error) {
	var envelope cloudEvent
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Outcome{}, domainerr.Validation("body", err)
	}
	var o Outcome
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, &o); err != nil {
			return Outcome{}, domainerr.Validation("data", err)
		}
		if envelope.ID != "" {
			o.EventID = envelope.ID
		}
	} else if err := json.Unmarshal(body, &o); err != nil {
		return Outcome{}, domainerr.Validation("body", err)
	}
	if strings.TrimSpace(o.EventID) == "" {
		return Outcome{}, domainerr.Validation("id", ErrMissingEventID)
	}
	return o, nil
}

// Listener applies payment events from the broker. It acts as the system
// principal. Transient failures are returned so the message is redelivered;
// anything else is logged and acknowledged. Confirm and cancel are no-ops on
// repeat, so applying an event twice is harmless.
type Listener struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

func (l *Listener) Handle(ctx context.Context, body []byte) error {
	o, err := Decode(body)
	if err != nil {
		l.logger().WarnContext(ctx, "payment event dropped", "error", err)
		return nil
	}
	if l.Inbox != nil {
		done, err := l.Inbox.Processed(ctx, o.EventID)
		if err != nil {
			return err
		}
		if done {
			l.logger().DebugContext(ctx, "payment event already processed", "event_id", o.EventID)
			return nil
		}
	}
	ctx = policies.WithPrincipal(ctx, policies.System)
	res, err := Apply(ctx, l.Commands, o)
	if err != nil {
		if errors.Is(err, domainerr.ErrTransient) || ctx.Err() != nil {
			return err
		}
		l.logger().WarnContext(ctx, "payment event rejected",
			"event_id", o.EventID,
			"reservation_id", o.ReservationID,
			"status", o.Status,
			"error", err)
		return l.mark(ctx, o.EventID)
	}
	l.logger().InfoContext(ctx, "payment outcome applied",
		"event_id", o.EventID,
		"reservation_id", res.ID,
		"reservation_status", res.Status)
	return l.mark(ctx, o.EventID)
}

func (l *Listener) mark(ctx context.Context, eventID string) error {
	if l.Inbox == nil {
		return nil
	}
	return l.Inbox.Mark(context.WithoutCancel(ctx), eventID)
}

func (l *Listener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
