package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"greentwin/internal/config"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestToRawMessage(t *testing.T) {
	payload := []byte(`{"machine_id":"Press_01"}`)
	received := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	msg := toRawMessage(&fakeMessage{topic: "factory/machine/01/sensor", payload: payload}, received)
	payload[0] = 'X'

	assert.Equal(t, `{"machine_id":"Press_01"}`, string(msg.Payload), "payload is copied")
	assert.Equal(t, "factory/machine/01/sensor", msg.Origin)
	assert.Equal(t, time.UTC, msg.ReceivedAt.Location())
	assert.True(t, received.Equal(msg.ReceivedAt))
}

func TestClientOptions(t *testing.T) {
	var cfg config.SourceConfig
	cfg.MQTT.Broker = "tcp://broker:1883"
	cfg.MQTT.ClientID = "greentwin-test"
	cfg.MQTT.Username = "user"
	cfg.MQTT.Password = "secret"

	s := New(cfg, zap.NewNop())
	opts := s.clientOptions()

	assert.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "greentwin-test", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.Order)
	assert.False(t, s.client.IsConnected())
}
