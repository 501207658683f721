package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/slimmermetai/auth-core/internal/metrics"
	"github.com/slimmermetai/auth-core/internal/queue"
)

// Notifier hands e-mail events to whatever delivers them. AuthService calls
// it after the database work is committed and never fails a request because
// of it.
type Notifier interface {
	Publish(ctx context.Context, ev queue.EmailEvent) error
}

// AMQPPublisher publishes EmailEvents as persistent JSON messages to a
// durable queue on the default exchange.
type AMQPPublisher struct {
	URL     string
	Queue   string
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Publish dials, declares the queue (idempotent) and publishes ev. Errors
// are logged and returned so the caller can choose to ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.EmailEvent) error {
	err := p.publish(ctx, ev)
	if err != nil {
		p.Log.Error("rabbitmq: publish email event failed", "kind", ev.Kind, "user_id", ev.UserID, "err", err)
		p.Metrics.RecordEmail(string(ev.Kind), "publish_failed")
		return err
	}
	p.Metrics.RecordEmail(string(ev.Kind), "published")
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, ev queue.EmailEvent) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// DirectNotifier runs the handler in-process. It replaces the broker when
// QUEUE_ENABLED=false.
type DirectNotifier struct {
	Handler queue.Handler
	Metrics *metrics.Metrics
}

func (d DirectNotifier) Publish(ctx context.Context, ev queue.EmailEvent) error {
	if err := d.Handler(ctx, ev); err != nil {
		d.Metrics.RecordEmail(string(ev.Kind), "send_failed")
		return err
	}
	d.Metrics.RecordEmail(string(ev.Kind), "sent")
	return nil
}
