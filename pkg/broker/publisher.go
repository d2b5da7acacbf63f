package broker

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes payloads to a single topic.
type Publisher interface {
	Publish(payload []byte) error
	Close()
}

type publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewPublisher returns a Publisher bound to topic on the shared client.
func NewPublisher(client mqtt.Client, topic string) Publisher {
	return &publisher{client: client, topic: topic, qos: qosFor(topic)}
}

func (p *publisher) Publish(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

func (p *publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
