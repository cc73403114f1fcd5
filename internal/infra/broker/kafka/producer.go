package kafka

import (
	"context"
	"sort"

	"github.com/IBM/sarama"
)

// Producer relays outbox envelopes to Kafka. Messages are keyed by aggregate
// id so every event of one reservation lands on one partition, in order.
type Producer struct {
	sync sarama.SyncProducer
}

// ProducerConfig is the exactly-once-per-session setup the relay relies on:
// idempotent writes need acks from all replicas and a single in-flight
// request per connection.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "staybook-relay"
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewProducer(brokers []string) (*Producer, error) {
	sync, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(sync), nil
}

func NewProducerFrom(sync sarama.SyncProducer) *Producer {
	return &Producer{sync: sync}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.sync.SendMessage(&sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: recordHeaders(headers),
	})
	return err
}

// recordHeaders orders headers by name so retried sends are byte-identical.
func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]sarama.RecordHeader, len(names))
	for i, name := range names {
		out[i] = sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])}
	}
	return out
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
