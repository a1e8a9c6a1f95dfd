package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"greentwin/internal/config"
	"greentwin/internal/logger"
)

type options struct {
	transport   string
	machineID   string
	rate        float64
	anomalyRate float64
	count       int
	seed        int64

	broker     string
	topic      string
	qos        int
	amqpURL    string
	exchange   string
	routingKey string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	d := config.DefaultConfig().Source
	opts := options{}

	cmd := &cobra.Command{
		Use:           "simulator",
		Short:         "Publish synthetic machine sensor readings",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			log, err := logger.New(config.LoggingConfig{Level: "info", Format: "console"})
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pub, err := opts.publisher(ctx)
			if err != nil {
				return err
			}
			defer pub.Close()

			sensor := NewSensor(opts.machineID, opts.anomalyRate, opts.seed)
			return simulate(ctx, sensor, pub, rate.NewLimiter(rate.Limit(opts.rate), 1), opts.count, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", "mqtt", "broker transport: mqtt or amqp")
	f.StringVar(&opts.machineID, "machine", "Press_01", "machine id to report as")
	f.Float64Var(&opts.rate, "rate", 1, "readings per second")
	f.Float64Var(&opts.anomalyRate, "anomaly-rate", 0.10, "probability that a reading is anomalous")
	f.IntVar(&opts.count, "count", 0, "stop after this many readings (0 runs until interrupted)")
	f.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed")
	f.StringVar(&opts.broker, "broker", d.MQTT.Broker, "MQTT broker URL")
	f.StringVar(&opts.topic, "topic", d.MQTT.Topic, "MQTT topic")
	f.IntVar(&opts.qos, "qos", d.MQTT.QoS, "MQTT QoS")
	f.StringVar(&opts.amqpURL, "amqp-url", d.AMQP.URL, "AMQP broker URL")
	f.StringVar(&opts.exchange, "exchange", d.AMQP.Exchange, "AMQP exchange")
	f.StringVar(&opts.routingKey, "routing-key", d.AMQP.RoutingKey, "AMQP routing key")

	return cmd
}

func (o options) validate() error {
	switch {
	case o.transport != "mqtt" && o.transport != "amqp":
		return fmt.Errorf("--transport must be mqtt or amqp, got %q", o.transport)
	case o.machineID == "":
		return errors.New("--machine is required")
	case o.rate <= 0:
		return errors.New("--rate must be positive")
	case o.anomalyRate < 0 || o.anomalyRate > 1:
		return errors.New("--anomaly-rate must be in [0, 1]")
	case o.count < 0:
		return errors.New("--count must not be negative")
	}
	return nil
}

func (o options) publisher(ctx context.Context) (Publisher, error) {
	if o.transport == "amqp" {
		return newAMQPPublisher(o.amqpURL, o.exchange, o.routingKey)
	}
	return newMQTTPublisher(ctx, o.broker, o.topic, "greentwin-simulator", o.qos)
}

// simulate publishes readings at the limiter's pace until ctx is done or count is reached
func simulate(ctx context.Context, sensor *Sensor, pub Publisher, limiter *rate.Limiter, count int, log *zap.Logger) error {
	sent := 0
	for count == 0 || sent < count {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		p := sensor.Next()
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		if err := pub.Publish(ctx, body); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("publish failed", zap.Error(err))
			continue
		}
		sent++

		if p.StatusLabel == "ANOMALY" {
			log.Warn("anomaly simulated", zap.Float64("current_amp", p.CurrentAmp))
		} else {
			log.Debug("reading sent", zap.Float64("current_amp", p.CurrentAmp))
		}
	}
	log.Info("simulator stopped", zap.Int("sent", sent))
	return nil
}
