package simulator

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoianemerik/moist/internal/calibration"
	"github.com/lekoianemerik/moist/internal/model"
)

type memStore struct {
	state map[string]State
	saves int
}

func (m *memStore) Load() map[string]State {
	out := make(map[string]State, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out
}

func (m *memStore) Save(s map[string]State) error {
	m.state = s
	m.saves++
	return nil
}

type memSink struct {
	batches [][]model.Reading
	err     error
}

func (m *memSink) InsertReadings(_ context.Context, rs []model.Reading) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, rs)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testRunner(store *memStore, sink *memSink) *Runner {
	gen := NewGenerator(DefaultParams(), rand.New(rand.NewSource(7)))
	return NewRunner(gen, store, sink, quietLogger())
}

func sensorCfg(id string) model.SensorConfig {
	return model.SensorConfig{
		SensorID: id,
		Anchors:  calibration.Anchors{Air: 3200, Soil: 2200, Water: 1400},
	}
}

func TestRunOneReadingPerSensor(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	r := testRunner(store, sink)

	err := r.Run(context.Background(), []model.SensorConfig{sensorCfg("2"), sensorCfg("1")})
	require.NoError(t, err)

	require.Len(t, sink.batches, 1)
	batch := sink.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "1", batch[0].SensorID, "batch sorted by sensor id")
	assert.Equal(t, "2", batch[1].SensorID)

	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.state, 2)
}

func TestRunSeedsAndPrunes(t *testing.T) {
	store := &memStore{state: map[string]State{
		"1": {Moisture: 42.0, Battery: 77},
		"9": {Moisture: 10.0, Battery: 20},
	}}
	sink := &memSink{}
	r := testRunner(store, sink)

	err := r.Run(context.Background(), []model.SensorConfig{sensorCfg("1"), sensorCfg("3")})
	require.NoError(t, err)

	_, still := store.state["9"]
	assert.False(t, still, "inactive sensor pruned from persisted state")
	assert.Contains(t, store.state, "1")
	assert.Contains(t, store.state, "3")
}

func TestRunSkipsDegenerateAnchors(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	r := testRunner(store, sink)

	bad := model.SensorConfig{
		SensorID: "2",
		Anchors:  calibration.Anchors{Air: 2200, Soil: 2200, Water: 1400},
	}
	err := r.Run(context.Background(), []model.SensorConfig{sensorCfg("1"), bad})
	require.NoError(t, err)

	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 1)
	assert.Equal(t, "1", sink.batches[0][0].SensorID)

	// The skipped sensor keeps its (seeded) state for the next run.
	assert.Contains(t, store.state, "2")
	assert.Equal(t, defaultState(), store.state["2"])
}

func TestRunInsertFailureKeepsOldState(t *testing.T) {
	store := &memStore{state: map[string]State{"1": {Moisture: 42.0, Battery: 77}}}
	sink := &memSink{err: errors.New("backend down")}
	r := testRunner(store, sink)

	err := r.Run(context.Background(), []model.SensorConfig{sensorCfg("1")})
	require.Error(t, err)

	assert.Equal(t, 0, store.saves, "state untouched, tick replays next run")
	assert.Equal(t, 42.0, store.state["1"].Moisture)
}

func TestRunNoSensors(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	r := testRunner(store, sink)

	require.NoError(t, r.Run(context.Background(), nil))
	assert.Empty(t, sink.batches)
	assert.Equal(t, 0, store.saves)
}
