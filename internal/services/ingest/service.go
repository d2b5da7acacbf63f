// Package ingest is the live-reading path: ESP32 telemetry arrives over
// MQTT, raw counts are converted to moisture percentages with each
// sensor's calibration anchors, and the result is written to InfluxDB
// and exposed through a small HTTP API.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/lekoianemerik/moist/internal/acquisition"
	"github.com/lekoianemerik/moist/internal/calibration"
	"github.com/lekoianemerik/moist/internal/model"
	"github.com/lekoianemerik/moist/pkg/broker"
	"github.com/lekoianemerik/moist/pkg/dedup"
)

// InfluxConfig locates the readings bucket.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// AnchorSource supplies the active sensor set; satisfied by
// *registry.Client.
type AnchorSource interface {
	ActiveSensors(ctx context.Context) ([]model.SensorConfig, error)
	ActivePlants(ctx context.Context) ([]model.PlantConfig, error)
}

// Narrow views of the Influx client, so tests can fake storage.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type fluxQuerier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Service consumes esp32/# telemetry and writes calibrated points.
type Service struct {
	consumer    broker.Consumer
	writeAPI    pointWriter
	queryAPI    fluxQuerier
	influxOK    func(ctx context.Context) error
	anchors     AnchorSource
	measurement string
	bucket      string
	deduper     *dedup.Deduper
	metrics     *metrics
	log         *logrus.Logger

	mu       sync.RWMutex
	bySensor map[string]calibration.Anchors
	latest   map[string]model.Reading
}

func NewService(consumer broker.Consumer, anchors AnchorSource, cfg InfluxConfig, log *logrus.Logger) (*Service, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "soil_moisture"
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Service{
		consumer:    consumer,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		influxOK:    func(ctx context.Context) error { _, err := client.Ping(ctx); return err },
		anchors:     anchors,
		measurement: cfg.Measurement,
		bucket:      cfg.Bucket,
		deduper:     dedup.New(2*time.Minute, 10000),
		metrics:     newMetrics(),
		log:         log,
		bySensor:    make(map[string]calibration.Anchors),
		latest:      make(map[string]model.Reading),
	}, nil
}

// Start refreshes anchors, subscribes, and blocks until ctx is done.
func (s *Service) Start(ctx context.Context, refreshEvery time.Duration) {
	if err := s.RefreshAnchors(ctx); err != nil {
		s.log.WithError(err).Warn("initial anchor refresh failed, readings drop until the registry answers")
	}
	go s.refreshLoop(ctx, refreshEvery)

	s.consumer.SetHandler(s.handle)
	s.consumer.Consume(ctx)
}

func (s *Service) refreshLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.RefreshAnchors(ctx); err != nil {
				s.log.WithError(err).Warn("anchor refresh failed, keeping previous set")
			}
		}
	}
}

// RefreshAnchors replaces the cached sensor->anchors map from the
// registry. Sensors with degenerate anchors are excluded up front so the
// hot path never divides by zero.
func (s *Service) RefreshAnchors(ctx context.Context) error {
	sensors, err := s.anchors.ActiveSensors(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]calibration.Anchors, len(sensors))
	for _, sc := range sensors {
		if err := sc.Anchors.Validate(); err != nil {
			s.log.WithError(err).WithField("sensor", sc.SensorID).Warn("excluding sensor")
			continue
		}
		if !sc.Anchors.Ordered() {
			s.log.WithFields(logrus.Fields{
				"sensor": sc.SensorID,
				"air":    sc.Air, "soil": sc.Soil, "water": sc.Water,
			}).Warn("anchors not ordered air > soil > water")
		}
		next[sc.SensorID] = sc.Anchors
	}

	s.mu.Lock()
	s.bySensor = next
	s.mu.Unlock()
	s.log.WithField("sensors", len(next)).Info("anchors refreshed")
	return nil
}

// handle processes one telemetry message. Errors are counted and logged
// but never propagate: one bad frame must not stall the stream.
func (s *Service) handle(topic string, msg mqtt.Message) error {
	sum := sha256.Sum256(msg.Payload())
	if s.deduper.Seen(hex.EncodeToString(sum[:])) {
		s.metrics.dropped.WithLabelValues("duplicate").Inc()
		return nil
	}

	var t acquisition.Telemetry
	if err := json.Unmarshal(msg.Payload(), &t); err != nil {
		s.metrics.dropped.WithLabelValues("bad_payload").Inc()
		s.log.WithError(err).WithField("topic", topic).Warn("invalid telemetry payload")
		return nil
	}

	sensorID := sensorFromTopic(topic)
	if sensorID == "" {
		s.metrics.dropped.WithLabelValues("bad_topic").Inc()
		return nil
	}

	s.mu.RLock()
	a, ok := s.bySensor[sensorID]
	s.mu.RUnlock()
	if !ok {
		s.metrics.dropped.WithLabelValues("unknown_sensor").Inc()
		s.log.WithField("sensor", sensorID).Debug("no anchors for sensor, dropping")
		return nil
	}

	recorded := time.Unix(t.Timestamp, 0).UTC()
	if t.Timestamp == 0 {
		recorded = time.Now().UTC()
	}
	reading := model.Reading{
		SensorID:    sensorID,
		MoistureRaw: int(t.Moisture),
		MoisturePct: calibration.RawToPct(t.Moisture, a),
		RecordedAt:  recorded,
	}

	point := influxdb2.NewPoint(
		s.measurement,
		map[string]string{"sensor_id": sensorID},
		map[string]interface{}{
			"moisture_raw": reading.MoistureRaw,
			"moisture_pct": reading.MoisturePct,
			"power_level":  t.PowerLevel,
		},
		recorded,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.metrics.writeErrors.Inc()
		s.log.WithError(err).Error("influx write failed")
		return err
	}

	s.mu.Lock()
	s.latest[sensorID] = reading
	s.mu.Unlock()

	s.metrics.ingested.Inc()
	s.log.WithFields(logrus.Fields{
		"sensor":   sensorID,
		"raw":      reading.MoistureRaw,
		"moisture": reading.MoisturePct,
	}).Info("ingested reading")
	return nil
}

// sensorFromTopic extracts the sensor ID from "esp32/<sensor>".
func sensorFromTopic(topic string) string {
	const prefix = "esp32/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	return topic[len(prefix):]
}

// Latest returns the cached most-recent reading per sensor.
func (s *Service) Latest() []model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reading, 0, len(s.latest))
	for _, r := range s.latest {
		out = append(out, r)
	}
	return out
}
