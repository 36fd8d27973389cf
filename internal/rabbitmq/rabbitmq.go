// Package rabbitmq carries outbox messages over RabbitMQ. Each topic maps to a
// durable queue of the same name on the default exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	declared map[string]bool
	logger   logrus.FieldLogger
}

func NewPublisher(url string, logger logrus.FieldLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	return newPublisher(conn, ch, logger), nil
}

func newPublisher(conn *amqp.Connection, ch channel, logger logrus.FieldLogger) *Publisher {
	return &Publisher{conn: conn, ch: ch, declared: make(map[string]bool), logger: logger.WithField("component", "rabbitmq-publisher")}
}

// Publish sends a persistent JSON message to the queue named topic.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[topic] {
		if _, err := p.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", topic, err)
		}
		p.declared[topic] = true
	}

	err := p.ch.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.WithFields(logrus.Fields{"queue": topic, "key": key}).Debug("published to rabbitmq")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

type Handler func(ctx context.Context, key string, payload []byte) error

// Consumer reads one queue with manual acknowledgements and reconnects with
// backoff when the broker goes away.
type Consumer struct {
	url    string
	queue  string
	logger logrus.FieldLogger
}

func NewConsumer(url, queue string, logger logrus.FieldLogger) *Consumer {
	return &Consumer{url: url, queue: queue, logger: logger.WithFields(logrus.Fields{"component": "rabbitmq-consumer", "queue": queue})}
}

// Consume blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	backoff := time.Second
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.WithError(err).WithField("retry_in", backoff.String()).Warn("consumer disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, handler Handler) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range deliveries {
		c.handle(ctx, d, handler)
	}
	return errors.New("deliveries channel closed")
}

// handle acks processed messages and rejects failed ones without requeueing.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	if err := handler(ctx, d.MessageId, d.Body); err != nil {
		c.logger.WithError(err).WithField("message_id", d.MessageId).Error("message handler failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
