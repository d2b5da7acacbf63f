package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Anchors from a real ESP32 capacitive probe.
var probe = Anchors{Air: 3200, Soil: 2200, Water: 1400}

func TestRawToPctAnchors(t *testing.T) {
	assert.Equal(t, 0.0, RawToPct(3200, probe))
	assert.Equal(t, 50.0, RawToPct(2200, probe))
	assert.Equal(t, 100.0, RawToPct(1400, probe))
}

func TestRawToPctMidpoints(t *testing.T) {
	assert.InDelta(t, 25.0, RawToPct(2700, probe), 1e-9)
	assert.InDelta(t, 75.0, RawToPct(1800, probe), 1e-9)
}

func TestRawToPctClamps(t *testing.T) {
	assert.Equal(t, 0.0, RawToPct(5000, probe))
	assert.Equal(t, 100.0, RawToPct(100, probe))
	assert.Equal(t, 100.0, RawToPct(-50, probe))
}

func TestRawToPctRange(t *testing.T) {
	for raw := -500.0; raw <= 4500; raw += 7.3 {
		pct := RawToPct(raw, probe)
		assert.GreaterOrEqual(t, pct, 0.0, "raw=%v", raw)
		assert.LessOrEqual(t, pct, 100.0, "raw=%v", raw)
	}
}

func TestRawToPctMonotone(t *testing.T) {
	prev := RawToPct(-500, probe)
	for raw := -495.0; raw <= 4500; raw += 5 {
		cur := RawToPct(raw, probe)
		assert.LessOrEqual(t, cur, prev, "raw=%v", raw)
		prev = cur
	}
}

func TestRoundTrip(t *testing.T) {
	for _, pct := range []float64{0, 25, 50, 75, 100} {
		raw := PctToRaw(pct, probe)
		assert.InDelta(t, pct, RawToPct(raw, probe), 1e-9, "pct=%v", pct)
	}
}

func TestRoundTripAsymmetricAnchors(t *testing.T) {
	a := Anchors{Air: 2913.5, Soil: 2204.1, Water: 1388.0}
	for pct := 0.0; pct <= 100; pct += 2.5 {
		raw := PctToRaw(pct, a)
		assert.InDelta(t, pct, RawToPct(raw, a), 1e-9, "pct=%v", pct)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, probe.Validate())
	assert.Error(t, Anchors{Air: 2200, Soil: 2200, Water: 1400}.Validate())
	assert.Error(t, Anchors{Air: 3200, Soil: 1400, Water: 1400}.Validate())
}

func TestOrdered(t *testing.T) {
	assert.True(t, probe.Ordered())
	// Inverted wiring: still computable, just suspect.
	inverted := Anchors{Air: 1400, Soil: 2200, Water: 3200}
	assert.False(t, inverted.Ordered())
	require.NoError(t, inverted.Validate())
}

func TestMedianOdd(t *testing.T) {
	m, err := Median([]float64{3210, 3190, 3205})
	require.NoError(t, err)
	assert.Equal(t, 3205.0, m)
}

func TestMedianEvenAveragesMiddlePair(t *testing.T) {
	m, err := Median([]float64{10, 10, 10, 100})
	require.NoError(t, err)
	assert.Equal(t, 10.0, m)

	m, err = Median([]float64{10, 20, 30, 100})
	require.NoError(t, err)
	assert.Equal(t, 25.0, m)
}

func TestMedianRounding(t *testing.T) {
	m, err := Median([]float64{1.11, 2.26, 3.0})
	require.NoError(t, err)
	assert.Equal(t, 2.3, m)
}

func TestMedianEmpty(t *testing.T) {
	_, err := Median(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Median(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}
