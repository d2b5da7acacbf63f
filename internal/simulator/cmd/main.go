// Fake-reading generator, run from cron every 30 minutes. One invocation
// performs exactly one tick for every active sensor and exits; the
// scheduler guarantees invocations do not overlap.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lekoianemerik/moist/internal/acquisition"
	"github.com/lekoianemerik/moist/internal/model"
	"github.com/lekoianemerik/moist/internal/registry"
	"github.com/lekoianemerik/moist/internal/simulator"
	"github.com/lekoianemerik/moist/internal/statestore"
	"github.com/lekoianemerik/moist/pkg/broker"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	url := env("SUPABASE_URL", "")
	key := env("SUPABASE_SECRET_KEY", "")
	if url == "" || key == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SECRET_KEY must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(envInt("RUN_TIMEOUT_SEC", 60)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reg := registry.NewClient(registry.Config{URL: url, SecretKey: key})

	sensors, err := reg.ActiveSensors(ctx)
	if err != nil {
		log.WithError(err).Fatal("sensor discovery failed")
	}
	if len(sensors) == 0 {
		log.Info("no active sensors found, nothing to do")
		return
	}

	var sink simulator.Sink = reg
	// With MQTT_HOST set, fabricated readings are also replayed as
	// device-format telemetry so the live ingest path gets exercised
	// without any hardware attached.
	if host := os.Getenv("MQTT_HOST"); host != "" {
		client, err := broker.Connect(ctx, broker.Config{
			Host:     host,
			Port:     envInt("MQTT_PORT", 1883),
			User:     env("MQTT_USER", ""),
			Password: env("MQTT_PASS", ""),
			ClientID: "fake-cron-" + uuid.NewString()[:8],
		}, log)
		if err != nil {
			log.WithError(err).Fatal("mqtt connect failed")
		}
		sink = &echoSink{next: reg, client: client, log: log}
	}

	store := statestore.New(env("STATE_FILE", "state.json"))
	gen := simulator.NewGenerator(simulator.DefaultParams(), nil)
	runner := simulator.NewRunner(gen, store, sink, log)

	if err := runner.Run(ctx, sensors); err != nil {
		log.WithError(err).Fatal("simulator run failed")
	}
}

// echoSink inserts the batch and then republishes each reading in the
// ESP32 wire format on its sensor's telemetry topic.
type echoSink struct {
	next   simulator.Sink
	client mqtt.Client
	log    *logrus.Logger
}

func (e *echoSink) InsertReadings(ctx context.Context, readings []model.Reading) error {
	if err := e.next.InsertReadings(ctx, readings); err != nil {
		return err
	}
	for _, r := range readings {
		payload, err := json.Marshal(acquisition.Telemetry{
			Timestamp: r.RecordedAt.Unix(),
			Moisture:  float64(r.MoistureRaw),
		})
		if err != nil {
			continue
		}
		pub := broker.NewPublisher(e.client, "esp32/"+r.SensorID)
		if err := pub.Publish(payload); err != nil {
			e.log.WithError(err).WithField("sensor", r.SensorID).Warn("telemetry echo failed")
		}
	}
	return nil
}
