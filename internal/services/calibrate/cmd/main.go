package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lekoianemerik/moist/internal/acquisition"
	"github.com/lekoianemerik/moist/internal/services/calibrate"
	"github.com/lekoianemerik/moist/pkg/broker"
)

func main() {
	sensorID := flag.String("sensor-id", "", "sensor ID (for display, used in the output instructions)")
	topic := flag.String("topic", "esp32/test", "MQTT topic the sensor publishes to")
	samples := flag.Int("samples", 10, "samples to collect per condition")
	host := flag.String("host", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if *sensorID == "" {
		fmt.Print("Sensor ID to calibrate: ")
		if _, err := fmt.Scanln(sensorID); err != nil || *sensorID == "" {
			log.Fatal("invalid sensor ID")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := broker.Connect(ctx, broker.Config{
		Host:     *host,
		Port:     *port,
		ClientID: "calibrate-" + uuid.NewString()[:8],
	}, log)
	if err != nil {
		log.WithError(err).Fatal("cannot reach the MQTT broker, is Mosquitto running?")
	}

	collector := acquisition.NewCollector(broker.NewConsumer(client, *topic, nil, log))
	collector.OnSample = func(i int, s acquisition.Sample) {
		power := ""
		if s.PowerLevel != 0 {
			power = fmt.Sprintf("  power=%.0f (%s)", s.PowerLevel, s.PowerMode)
		}
		fmt.Printf("  [%d/%d] moisture = %.1f%s\n", i, *samples, s.Raw, power)
	}

	flow := &calibrate.Flow{
		Source:   collector,
		In:       os.Stdin,
		Out:      os.Stdout,
		SensorID: *sensorID,
		Samples:  *samples,
	}

	fmt.Printf("Listening on: %s\n", *topic)
	if _, err := flow.Run(ctx); err != nil {
		log.WithError(err).Fatal("calibration failed")
	}
}
