package monitor

import (
	"context"
	"time"

	"github.com/nerrad567/climate-core/internal/alert"
	"github.com/nerrad567/climate-core/internal/history"
	"github.com/nerrad567/climate-core/internal/infrastructure/mqtt"
)

// influxWriter is the part of influxdb.Client the telemetry sink uses.
type influxWriter interface {
	WriteSample(unitID int64, unitName string, temperature, humidity *float64, actuatorOn bool, at time.Time)
	WriteAlert(unitID int64, temperature float64, at time.Time)
}

// InfluxSink mirrors samples and alerts into InfluxDB.
type InfluxSink struct {
	w influxWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w influxWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// RecordSample queues s for the next batch write.
func (s *InfluxSink) RecordSample(_ context.Context, unitName string, sample history.Sample) {
	s.w.WriteSample(sample.UnitID, unitName, sample.Temperature, sample.Humidity, sample.ActuatorOn, sample.Timestamp)
}

// RecordAlert queues an alert point.
func (s *InfluxSink) RecordAlert(e alert.Event) {
	s.w.WriteAlert(e.UnitID, e.Temperature, e.At)
}

// Publisher is the MQTT publishing surface the telemetry sink uses.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v any, retained bool) error
}

// MQTTSink republishes samples and alerts on per-unit topics.
type MQTTSink struct {
	p      Publisher
	logger Logger
}

// NewMQTTSink creates a sink publishing through p.
func NewMQTTSink(p Publisher, logger Logger) *MQTTSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTSink{p: p, logger: logger}
}

type samplePayload struct {
	UnitID      int64     `json:"unit_id"`
	Name        string    `json:"name"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	ActuatorOn  bool      `json:"actuator_on"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecordSample publishes sample as retained state on the unit topic.
func (s *MQTTSink) RecordSample(ctx context.Context, unitName string, sample history.Sample) {
	payload := samplePayload{
		UnitID:      sample.UnitID,
		Name:        unitName,
		Temperature: sample.Temperature,
		Humidity:    sample.Humidity,
		ActuatorOn:  sample.ActuatorOn,
		Timestamp:   sample.Timestamp,
	}
	if err := s.p.PublishJSON(ctx, mqtt.Topics{}.UnitSample(sample.UnitID), payload, true); err != nil {
		s.logger.Debug("publishing sample failed", "unit_id", sample.UnitID, "error", err)
	}
}

// RecordAlert publishes an alert event.
func (s *MQTTSink) RecordAlert(e alert.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.p.PublishJSON(ctx, mqtt.Topics{}.UnitAlert(e.UnitID), e, false); err != nil {
		s.logger.Warn("publishing alert failed", "unit_id", e.UnitID, "error", err)
	}
}
