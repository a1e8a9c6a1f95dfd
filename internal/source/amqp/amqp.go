// Package amqp consumes sensor readings from a RabbitMQ queue.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"greentwin/internal/config"
	"greentwin/internal/model"
)

const prefetchCount = 64

// Source consumes the configured queue, bound to exchange/routing key
type Source struct {
	cfg     config.SourceConfig
	log     *zap.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
}

func New(cfg config.SourceConfig, log *zap.Logger) *Source {
	return &Source{cfg: cfg, log: log.Named("amqp")}
}

// Connect dials the broker and declares the topology; callers wrap it in a retry loop
func (s *Source) Connect(_ context.Context) error {
	if s.conn != nil && !s.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(s.cfg.AMQP.URL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := declare(ch, s.cfg.AMQP.Exchange, s.cfg.AMQP.RoutingKey, s.cfg.AMQP.Queue); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	s.conn = conn
	s.channel = ch
	s.log.Info("connected", zap.String("queue", s.cfg.AMQP.Queue), zap.String("exchange", s.cfg.AMQP.Exchange))
	return nil
}

// declare sets up the topic exchange, durable queue and binding used by the simulator
func declare(ch *amqp.Channel, exchange, routingKey, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("amqp exchange declare: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("amqp queue bind: %w", err)
	}

	return ch.Qos(prefetchCount, 0, false)
}

func toRawMessage(d amqp.Delivery, receivedAt time.Time) model.RawMessage {
	return model.RawMessage{
		Payload:    d.Body,
		ReceivedAt: receivedAt.UTC(),
		Origin:     d.RoutingKey,
	}
}

// Run consumes until ctx is done or the channel closes. A delivery is acked
// once it has been handed to the pipeline; decoding problems are the
// pipeline's concern, so nothing is requeued.
func (s *Source) Run(ctx context.Context, out chan<- model.RawMessage) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.close()

	msgs, err := s.channel.Consume(
		s.cfg.AMQP.Queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			select {
			case out <- toRawMessage(d, time.Now()):
				if err := d.Ack(false); err != nil {
					s.log.Warn("ack failed", zap.Error(err))
				}
			case <-ctx.Done():
				// unacked deliveries are redelivered to the next consumer
				d.Nack(false, true)
				return nil
			}
		}
	}
}

func (s *Source) close() {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
