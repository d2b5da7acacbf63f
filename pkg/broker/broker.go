// Package broker wraps the paho MQTT client behind small publisher and
// consumer interfaces so the services and tools can be tested with fakes
// instead of a live Mosquitto.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Config holds the broker connection parameters. One shared client per
// process; publishers and consumers are cheap views onto it.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

// Connect dials the broker with exponential backoff and returns a
// connected client. The client disconnects itself when ctx is cancelled.
func Connect(ctx context.Context, cfg Config, log *logrus.Logger) (mqtt.Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Warn("mqtt connect failed, retrying")
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", addr, err)
	}

	log.WithField("broker", addr).Info("connected to mqtt broker")

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Info("mqtt client disconnected")
	}()

	return client, nil
}
