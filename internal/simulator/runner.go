package simulator

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/lekoianemerik/moist/internal/model"
)

// StateStore is the persistence collaborator: whole-document load and
// save, no partial updates.
type StateStore interface {
	Load() map[string]State
	Save(map[string]State) error
}

// Sink receives the batch of fabricated readings.
type Sink interface {
	InsertReadings(ctx context.Context, readings []model.Reading) error
}

// Runner performs one cron invocation: reconcile persisted state against
// the active sensor set, tick every sensor, insert the batch, persist
// the new state. Single-threaded; overlapping invocations are prevented
// by the scheduler, not here.
type Runner struct {
	gen   *Generator
	store StateStore
	sink  Sink
	log   *logrus.Logger
}

func NewRunner(gen *Generator, store StateStore, sink Sink, log *logrus.Logger) *Runner {
	return &Runner{gen: gen, store: store, sink: sink, log: log}
}

// Run advances every sensor in sensors by one tick. Sensors with
// degenerate calibration are skipped with a warning; they keep their
// persisted state but produce no reading. State is saved only after the
// batch insert succeeds, so a failed run replays the same tick next time.
func (r *Runner) Run(ctx context.Context, sensors []model.SensorConfig) error {
	if len(sensors) == 0 {
		r.log.Info("no active sensors, nothing to do")
		return nil
	}

	ids := make([]string, 0, len(sensors))
	for _, s := range sensors {
		ids = append(ids, s.SensorID)
	}
	state := Reconcile(r.store.Load(), ids)

	// Deterministic processing order keeps logs and batches stable.
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].SensorID < sensors[j].SensorID })

	readings := make([]model.Reading, 0, len(sensors))
	for _, s := range sensors {
		if err := s.Anchors.Validate(); err != nil {
			r.log.WithError(err).WithField("sensor", s.SensorID).Warn("skipping sensor")
			continue
		}
		if !s.Anchors.Ordered() {
			r.log.WithFields(logrus.Fields{
				"sensor": s.SensorID,
				"air":    s.Air, "soil": s.Soil, "water": s.Water,
			}).Warn("anchors not ordered air > soil > water, proceeding anyway")
		}

		next, reading := r.gen.Tick(s.SensorID, state[s.SensorID], s.Anchors)
		state[s.SensorID] = next
		readings = append(readings, reading)

		r.log.WithFields(logrus.Fields{
			"sensor":   s.SensorID,
			"moisture": reading.MoisturePct,
			"battery":  reading.Battery,
			"raw":      reading.MoistureRaw,
		}).Info("generated reading")
	}

	if len(readings) > 0 {
		if err := r.sink.InsertReadings(ctx, readings); err != nil {
			return fmt.Errorf("insert readings: %w", err)
		}
	}

	if err := r.store.Save(state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	r.log.WithField("inserted", len(readings)).Info("run complete")
	return nil
}
