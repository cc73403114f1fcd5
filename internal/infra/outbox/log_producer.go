package outbox

import (
	"context"
	"log/slog"
)

// LogProducer publishes by logging. It stands in for a broker in local runs.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event published", "topic", topic, "key", key, "bytes", len(payload), "type", headers["ce-type"])
	return nil
}
