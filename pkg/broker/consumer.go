package broker

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Handler processes one inbound message. Returned errors are logged but
// never stop the subscription.
type Handler func(topic string, msg mqtt.Message) error

// Consumer subscribes to one topic filter and feeds messages to a
// handler until its context is cancelled.
type Consumer interface {
	Consume(ctx context.Context)
	SetHandler(h Handler)
}

type consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
	log     *logrus.Logger
}

// NewConsumer returns a Consumer for the given topic filter. The handler
// may be nil and set later via SetHandler, before Consume.
func NewConsumer(client mqtt.Client, topic string, h Handler, log *logrus.Logger) Consumer {
	return &consumer{client: client, topic: topic, handler: h, log: log}
}

func (c *consumer) SetHandler(h Handler) { c.handler = h }

// qosFor picks QoS 1 for device telemetry (readings must survive flaky
// links) and QoS 0 for everything else.
func qosFor(topic string) byte {
	if strings.HasPrefix(strings.TrimSpace(topic), "esp32/") {
		return 1
	}
	return 0
}

// Consume subscribes and blocks until ctx is done, then unsubscribes.
func (c *consumer) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			c.log.WithField("topic", msg.Topic()).Warn("message dropped, no handler set")
			return
		}
		if err := c.handler(msg.Topic(), msg); err != nil {
			c.log.WithError(err).WithField("topic", msg.Topic()).Warn("handler error")
		}
	})
	if token.Wait() && token.Error() != nil {
		c.log.WithError(token.Error()).WithField("topic", c.topic).Error("subscribe failed")
		return
	}
	c.log.WithField("topic", c.topic).Info("subscribed")

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
