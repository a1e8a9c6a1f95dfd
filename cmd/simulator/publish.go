package main

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends one encoded payload to the broker
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

type mqttPublisher struct {
	client paho.Client
	topic  string
	qos    byte
}

func newMQTTPublisher(ctx context.Context, broker, topic, clientID string, qos int) (*mqttPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := paho.NewClient(opts)

	tok := client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return &mqttPublisher{client: client, topic: topic, qos: byte(qos)}, nil
}

func (p *mqttPublisher) Publish(ctx context.Context, body []byte) error {
	tok := p.client.Publish(p.topic, p.qos, false, body)
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *mqttPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

type amqpPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func newAMQPPublisher(url, exchange, routingKey string) (*amqpPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	return &amqpPublisher{conn: conn, channel: ch, exchange: exchange, routingKey: routingKey}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, body []byte) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}

func (p *amqpPublisher) Close() error {
	p.channel.Close()
	return p.conn.Close()
}
