// Package mqtt subscribes to sensor readings on an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"greentwin/internal/config"
	"greentwin/internal/model"
)

const connectTimeout = 10 * time.Second

// Source delivers every message published on the configured topic
type Source struct {
	cfg    config.SourceConfig
	log    *zap.Logger
	client paho.Client

	mu      sync.Mutex
	handler paho.MessageHandler
}

func New(cfg config.SourceConfig, log *zap.Logger) *Source {
	s := &Source{cfg: cfg, log: log.Named("mqtt")}
	s.client = paho.NewClient(s.clientOptions())
	return s
}

func (s *Source) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.MQTT.Broker).
		SetClientID(s.cfg.MQTT.ClientID).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.log.Warn("connection lost, reconnecting", zap.Error(err))
		})
	if s.cfg.MQTT.Username != "" {
		opts.SetUsername(s.cfg.MQTT.Username)
		opts.SetPassword(s.cfg.MQTT.Password)
	}
	return opts
}

// Connect dials the broker once; callers wrap it in a retry loop
func (s *Source) Connect(ctx context.Context) error {
	if s.client.IsConnected() {
		return nil
	}
	tok := s.client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.MQTT.Broker, err)
	}
	s.log.Info("connected", zap.String("broker", s.cfg.MQTT.Broker))
	return nil
}

// onConnect restores the subscription after an automatic reconnect
func (s *Source) onConnect(c paho.Client) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}
	if err := s.subscribe(c, h); err != nil {
		s.log.Error("resubscribe failed", zap.Error(err))
	}
}

func (s *Source) subscribe(c paho.Client, h paho.MessageHandler) error {
	tok := c.Subscribe(s.cfg.MQTT.Topic, byte(s.cfg.MQTT.QoS), h)
	if !tok.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout", s.cfg.MQTT.Topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.cfg.MQTT.Topic, err)
	}
	s.log.Info("subscribed", zap.String("topic", s.cfg.MQTT.Topic), zap.Int("qos", s.cfg.MQTT.QoS))
	return nil
}

// toRawMessage copies what the pipeline needs out of a paho message
func toRawMessage(m paho.Message, receivedAt time.Time) model.RawMessage {
	return model.RawMessage{
		Payload:    append([]byte(nil), m.Payload()...),
		ReceivedAt: receivedAt.UTC(),
		Origin:     m.Topic(),
	}
}

// Run subscribes and forwards messages until ctx is done. The paho callback
// blocks while out is full, which pushes back on the broker connection.
func (s *Source) Run(ctx context.Context, out chan<- model.RawMessage) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	handler := func(_ paho.Client, m paho.Message) {
		select {
		case out <- toRawMessage(m, time.Now()):
		case <-ctx.Done():
		}
	}
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()

	if err := s.subscribe(s.client, handler); err != nil {
		return err
	}

	<-ctx.Done()
	s.log.Info("shutting down")

	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
	s.client.Unsubscribe(s.cfg.MQTT.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
	return nil
}
