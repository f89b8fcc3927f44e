package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/queue"
)

// AuditPublisher publishes audit events to a durable RabbitMQ queue.  It
// dials per publish, so a broker outage only costs the events sent while it
// is down; failures are logged and returned and never block the write that
// produced the event.
type AuditPublisher struct {
	URL   string
	Queue string
	Log   logrus.FieldLogger
}

// NewAuditPublisher returns a publisher for queueName on url.
func NewAuditPublisher(url, queueName string, log logrus.FieldLogger) *AuditPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuditPublisher{URL: url, Queue: queueName, Log: log}
}

// Publish sends ev as a persistent JSON message on the default exchange.
func (p *AuditPublisher) Publish(ctx context.Context, ev queue.AuditEvent) error {
	log := p.Log.WithField("queue", p.Queue)
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := queue.Declare(ch, p.Queue); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Kind + "." + ev.Action,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// NopPublisher discards events; used when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.AuditEvent) error { return nil }
