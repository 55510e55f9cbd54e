// AngelaMos | 2026
// queue.go

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueSender publishes messages to a durable queue consumed by the mailer
// worker. The connection is dialed lazily and redialed once it closes.
type QueueSender struct {
	url    string
	queue  string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewQueueSender(url, queue string, logger *slog.Logger) *QueueSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSender{url: url, queue: queue, logger: logger}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	ch, err := s.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare mail queue: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.QueuedAt,
		Type:         msg.Template,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail: %w", err)
	}

	return nil
}

func (s *QueueSender) channel() (*amqp.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() {
		conn, err := amqp.Dial(s.url)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		s.conn = conn
	}

	ch, err := s.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Ping reports whether the broker is reachable. Used by readiness checks.
func (s *QueueSender) Ping(_ context.Context) error {
	ch, err := s.channel()
	if err != nil {
		return err
	}
	return ch.Close()
}

func (s *QueueSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}

type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer drains the mail queue, reconnecting with exponential backoff
// until ctx is cancelled.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	logger   *slog.Logger
}

func NewConsumer(url, queue string, prefetch int, logger *slog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{url: url, queue: queue, prefetch: prefetch, logger: logger}
}

const maxBackoff = 30 * time.Second

func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	backoff := time.Second

	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("mail consumer: dial failed",
				"error", err,
				"retry_in", backoff,
			)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, handle)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("mail consumer: loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(
	ctx context.Context,
	conn *amqp.Connection,
	handle HandlerFunc,
) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("mail consumer: set qos failed", "error", err)
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare mail queue: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d, handle)
		}
	}
}

// deliver acks on success. Malformed payloads are dropped; delivery errors
// are requeued once and dropped when they fail again.
func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	msg, err := DecodeMessage(d.Body)
	if err != nil {
		c.logger.Error("mail consumer: malformed message", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := handle(ctx, msg); err != nil {
		c.logger.Error("mail consumer: delivery failed",
			"error", err,
			"template", msg.Template,
			"redelivered", d.Redelivered,
		)
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	_ = d.Ack(false)
}

func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal mail: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
