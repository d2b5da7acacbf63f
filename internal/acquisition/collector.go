// Package acquisition collects raw sensor samples from the live MQTT
// stream. The ESP32 publishes one JSON telemetry message per second; the
// collector decodes it, extracts the raw moisture count, and hands the
// caller a bounded batch.
package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lekoianemerik/moist/internal/calibration"
	"github.com/lekoianemerik/moist/pkg/broker"
)

// Telemetry is the device wire format. Moisture is a raw frequency count
// (charge/discharge cycles in a 10ms window averaged over 64 samples),
// not a percentage.
type Telemetry struct {
	Timestamp  int64   `json:"timestamp"`
	Moisture   float64 `json:"moisture"`
	PowerLevel float64 `json:"powerLevel"`
	PowerMode  string  `json:"powerMode"`
}

// Sample is one decoded raw reading.
type Sample struct {
	Raw        float64
	PowerLevel float64
	PowerMode  string
}

// Collector turns a broker subscription into a blocking, bounded sample
// fetch. Decoding happens on the MQTT callback path; everything else
// waits on a channel, so there is no shared counter to race on.
type Collector struct {
	consumer broker.Consumer

	// OnSample, when set, is called from Collect's goroutine for each
	// accepted sample (1-based index). Used for interactive progress.
	OnSample func(i int, s Sample)
}

func NewCollector(consumer broker.Consumer) *Collector {
	return &Collector{consumer: consumer}
}

// Collect blocks until n samples arrive or timeout elapses, then returns
// exactly the samples collected so far. Zero samples is an error: the
// window passed and the device never published.
func (c *Collector) Collect(ctx context.Context, n int, timeout time.Duration) ([]Sample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}

	ch := make(chan Sample, n)
	c.consumer.SetHandler(func(_ string, msg mqtt.Message) error {
		var t Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			return nil // malformed frames are expected noise, skip
		}
		select {
		case ch <- Sample{Raw: t.Moisture, PowerLevel: t.PowerLevel, PowerMode: t.PowerMode}:
		default: // batch already full
		}
		return nil
	})

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.consumer.Consume(subCtx)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	samples := make([]Sample, 0, n)
	for len(samples) < n {
		select {
		case s := <-ch:
			samples = append(samples, s)
			if c.OnSample != nil {
				c.OnSample(len(samples), s)
			}
		case <-deadline.C:
			if len(samples) == 0 {
				return nil, fmt.Errorf("%w after %s: is the sensor publishing to this topic?",
					calibration.ErrNoSamples, timeout)
			}
			return samples, nil
		case <-ctx.Done():
			if len(samples) == 0 {
				return nil, fmt.Errorf("%w: %v", calibration.ErrNoSamples, ctx.Err())
			}
			return samples, nil
		}
	}
	return samples, nil
}
