// Package rabbitmq relays outbox envelopes to a topic exchange. The routing
// key is the outbox topic, so queues bind on patterns like "reservation.#".
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "staybook.events"

var ErrClosed = errors.New("rabbitmq: producer closed")

type Producer struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	done bool
}

func NewProducer(url, exchange string) (*Producer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Producer{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Producer) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: exchange declare: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: confirm mode: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish sends one persistent message and waits for the broker confirm. A
// dropped connection is redialed on the next call.
func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return ErrClosed
	}
	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, topic, false, false, publishing(key, payload, headers, time.Now()))
	if err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rabbitmq: broker nacked %s", topic)
	}
	return nil
}

func publishing(key string, payload []byte, headers map[string]string, now time.Time) amqp.Publishing {
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	contentType := headers["content-type"]
	if contentType == "" {
		contentType = "application/json"
	}
	return amqp.Publishing{
		ContentType:   contentType,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     now.UTC(),
		MessageId:     headers["ce-id"],
		Type:          headers["ce-type"],
		CorrelationId: key,
		Headers:       table,
		Body:          payload,
	}
}

func (p *Producer) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.reset()
	return nil
}
