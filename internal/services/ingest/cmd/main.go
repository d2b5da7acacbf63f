package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lekoianemerik/moist/internal/registry"
	"github.com/lekoianemerik/moist/internal/services/ingest"
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
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := broker.Connect(ctx, broker.Config{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", ""),
		Password: env("MQTT_PASS", ""),
		ClientID: env("MQTT_CLIENT_ID", "ingest-"+uuid.NewString()[:8]),
	}, log)
	if err != nil {
		log.WithError(err).Fatal("mqtt connect failed")
	}

	reg := registry.NewClient(registry.Config{
		URL:       env("SUPABASE_URL", ""),
		SecretKey: env("SUPABASE_SECRET_KEY", ""),
	})

	consumer := broker.NewConsumer(client, env("MQTT_TOPIC", "esp32/#"), nil, log)
	svc, err := ingest.NewService(consumer, reg, ingest.InfluxConfig{
		URL:         env("INFLUX_URL", "http://localhost:8086"),
		Token:       env("INFLUX_TOKEN", ""),
		Org:         env("INFLUX_ORG", "moist"),
		Bucket:      env("INFLUX_BUCKET", "readings"),
		Measurement: env("MEASUREMENT", "soil_moisture"),
	}, log)
	if err != nil {
		log.WithError(err).Fatal("ingest init failed")
	}

	srv := &http.Server{
		Addr:              ":" + env("PORT", "8080"),
		Handler:           ingest.NewHTTPMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("ingest HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	refresh := time.Duration(envInt("ANCHOR_REFRESH_SEC", 300)) * time.Second
	go svc.Start(ctx, refresh)

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Info("ingest: shutdown complete")
}
