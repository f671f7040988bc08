package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler delivers one notification.  Returning an error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, ev NotificationEvent) error

// Consumer reads the notification queue until its context is cancelled,
// redialing the broker with exponential backoff whenever the connection
// drops.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	handle   Handler
	log      *zap.Logger
}

func NewConsumer(url, queue string, handle Handler, log *zap.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{url: url, queue: queue, prefetch: 50, handle: handle, log: log}
}

// LogHandler is the default delivery: it writes each notification to the
// structured log.  Real channels (SMS, email) plug in as other Handlers.
func LogHandler(log *zap.Logger) Handler {
	return func(_ context.Context, ev NotificationEvent) error {
		log.Info("notification delivered",
			zap.String("event_id", ev.ID),
			zap.Uint64("user_id", ev.UserID),
			zap.String("template", ev.Template),
			zap.Any("data", ev.Data),
			zap.Time("created_at", ev.CreatedAt),
		)
		return nil
	}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // never give up

	for {
		err := backoff.RetryNotify(func() error {
			conn, err := amqp.Dial(c.url)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			b.Reset() // reset after successful connect
			return c.consumeLoop(ctx, conn)
		}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
			c.log.Warn("notification consumer disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("notification consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.process(ctx, d.Body); err != nil {
				c.log.Error("notification rejected", zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) process(ctx context.Context, body []byte) error {
	ev, err := decodeEvent(body)
	if err != nil {
		return err
	}
	return c.handle(ctx, ev)
}
