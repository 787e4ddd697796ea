package transcript

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	logpkg "github.com/rzbill/triage/pkg/log"
)

// AMQPDelivery publishes transcripts to a RabbitMQ topic exchange.
type AMQPDelivery struct {
	conn       *amqp091.Connection
	exchange   string
	routingKey string
	logger     logpkg.Logger
}

// NewAMQPDelivery dials the broker and declares the exchange.
func NewAMQPDelivery(url, exchange, routingKey string, logger logpkg.Logger) (*AMQPDelivery, error) {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPDelivery{
		conn:       conn,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.With(logpkg.Component("transcript")),
	}, nil
}

// Deliver publishes one transcript as a persistent JSON message.
func (d *AMQPDelivery) Deliver(ctx context.Context, t Transcript) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(
		ctx, d.exchange, d.routingKey, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     uuid.NewString(),
			CorrelationId: t.ThreadID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err == nil {
		d.logger.Info("transcript published",
			logpkg.Str("thread_id", t.ThreadID),
			logpkg.Str("exchange", d.exchange),
			logpkg.Str("key", d.routingKey),
		)
	}
	return err
}

// Close closes the broker connection.
func (d *AMQPDelivery) Close() error { return d.conn.Close() }
