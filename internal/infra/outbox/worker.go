// Package outbox relays committed event records to the message broker.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	appoutbox "staybook/internal/app/outbox"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker drains an outbox source at least once. Consumers dedupe on the
// envelope id, which is the record id.
type Worker struct {
	Source      appoutbox.Source
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	EventSource string
	ID          string
	Backoff     []time.Duration
	Clock       func() time.Time
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Source == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger().ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain relays records until nothing is due or a publish fails.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		sent, err := w.processOnce(ctx)
		if err != nil || !sent {
			return err
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	rec, err := w.Source.Claim(ctx, w.workerID())
	if err != nil || rec == nil {
		return false, err
	}
	topic := w.topicFor(rec.Name)
	payload, headers, err := w.formatPayload(rec)
	if err != nil {
		return false, w.fail(ctx, rec, err)
	}
	if err := w.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers); err != nil {
		return false, w.fail(ctx, rec, err)
	}
	w.logger().DebugContext(ctx, "outbox record relayed", "event_id", rec.ID, "name", rec.Name, "topic", topic)
	return true, w.Source.MarkSent(ctx, rec.ID)
}

func (w *Worker) fail(ctx context.Context, rec *appoutbox.Pending, cause error) error {
	next := w.nextRetry(rec.Attempts)
	w.logger().WarnContext(ctx, "outbox relay failed",
		"event_id", rec.ID,
		"name", rec.Name,
		"attempts", rec.Attempts+1,
		"next_attempt_at", next,
		"error", cause)
	return w.Source.MarkFailed(ctx, rec.ID, next, cause.Error())
}

type envelope struct {
	SpecVersion     string              `json:"specversion"`
	ID              string              `json:"id"`
	Type            string              `json:"type"`
	Source          string              `json:"source"`
	Subject         string              `json:"subject,omitempty"`
	Time            time.Time           `json:"time"`
	DataContentType string              `json:"datacontenttype"`
	TraceParent     string              `json:"traceparent,omitempty"`
	Data            jsoniter.RawMessage `json:"data"`
}

func (w *Worker) formatPayload(rec *appoutbox.Pending) ([]byte, map[string]string, error) {
	if !json.Valid(rec.Payload) {
		return nil, nil, errors.New("outbox: payload is not valid json")
	}
	evt := envelope{
		SpecVersion:     "1.0",
		ID:              rec.ID,
		Type:            rec.Name + ".v1",
		Source:          w.eventSource(),
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt,
		DataContentType: "application/json",
		TraceParent:     rec.Headers["traceparent"],
		Data:            rec.Payload,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-id":        rec.ID,
		"ce-type":      evt.Type,
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	w.ID = uuid.NewString()
	return w.ID
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) now() time.Time {
	if w.Clock != nil {
		return w.Clock()
	}
	return time.Now()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return w.now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return w.now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return w.now().Add(5 * time.Second)
}

func (w *Worker) eventSource() string {
	if w.EventSource != "" {
		return w.EventSource
	}
	return "app://staybook"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
