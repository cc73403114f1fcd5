package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

// MessageHandler processes one record body. An error leaves the offset
// unmarked, so the record comes back after the claim restarts.
type MessageHandler interface {
	Handle(ctx context.Context, body []byte) error
}

type MessageHandlerFunc func(ctx context.Context, body []byte) error

func (f MessageHandlerFunc) Handle(ctx context.Context, body []byte) error { return f(ctx, body) }

// ConsumerConfig starts new groups from the oldest offset; payment outcomes
// published before the first deploy still count.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "staybook-consumer"
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return cfg
}

// Consumer runs one handler for every topic it is subscribed to.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler consumerGroupHandler
}

func NewConsumer(brokers []string, groupID string, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, ConsumerConfig())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		group:   group,
		handler: consumerGroupHandler{handler: handler, logger: logger.With("group", groupID)},
	}, nil
}

// Run rejoins the group after every rebalance until ctx ends or the group is
// closed.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for ctx.Err() == nil {
		err := c.group.Consume(ctx, topics, c.handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (c *Consumer) Close() error { return c.group.Close() }

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.process(sess.Context(), msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func (h consumerGroupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if err := h.handler.Handle(ctx, msg.Value); err != nil {
		h.logger.ErrorContext(ctx, "kafka message failed",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		return err
	}
	return nil
}
