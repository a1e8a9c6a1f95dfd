package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"greentwin/internal/model"
)

// InfluxSink writes points to an InfluxDB 2.x bucket with the blocking write API
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewInfluxSink creates the client and checks the server answers
func NewInfluxSink(ctx context.Context, url, token, org, bucket string) (*InfluxSink, error) {
	client := influxdb2.NewClient(url, token)
	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not ready", url)
	}
	return &InfluxSink{client: client, writer: client.WriteAPIBlocking(org, bucket)}, nil
}

func metricsPoint(rec model.MetricsRecord) *write.Point {
	return influxdb2.NewPoint(MeasurementMetrics,
		map[string]string{"machine_id": rec.MachineID},
		map[string]interface{}{
			"current":         rec.CurrentAmp,
			"power_kw":        rec.PowerKW,
			"co2_grams":       rec.Derived.CO2Grams,
			"cost_minor_unit": rec.Derived.CostMinorUnit,
			"energy_kwh":      rec.Derived.EnergyKWh,
		},
		rec.ProcessedAt)
}

func verdictPoint(rec model.VerdictRecord) *write.Point {
	return influxdb2.NewPoint(MeasurementAnalysis,
		map[string]string{"machine_id": rec.MachineID},
		map[string]interface{}{
			"is_anomaly": rec.Verdict.AnomalyFlag(),
		},
		rec.ProcessedAt)
}

func (s *InfluxSink) WriteMetrics(ctx context.Context, rec model.MetricsRecord) error {
	if err := s.writer.WritePoint(ctx, metricsPoint(rec)); err != nil {
		return fmt.Errorf("influxdb write %s: %w", MeasurementMetrics, err)
	}
	return nil
}

func (s *InfluxSink) WriteVerdict(ctx context.Context, rec model.VerdictRecord) error {
	if err := s.writer.WritePoint(ctx, verdictPoint(rec)); err != nil {
		return fmt.Errorf("influxdb write %s: %w", MeasurementAnalysis, err)
	}
	return nil
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
