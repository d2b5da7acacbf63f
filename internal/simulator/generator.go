// Package simulator fabricates plausible sensor readings so the
// dashboard has data to show without any hardware attached. Each active
// sensor advances one stochastic tick per cron run: gradual drying,
// measurement noise, the occasional watering event, and slow battery
// drain. The raw count is derived from the moisture percentage through
// the inverse calibration mapping, so simulated readings stay consistent
// with each sensor's real anchors.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/lekoianemerik/moist/internal/calibration"
	"github.com/lekoianemerik/moist/internal/model"
)

// Params are the stochastic constants of one tick. The defaults model a
// 30-minute interval; the tick length itself is a scheduling concern and
// never appears in the transition.
type Params struct {
	DryMin, DryMax     float64 // drying per tick, %
	NoiseAmp           float64 // symmetric noise, +/- %
	WaterProb          float64 // watering probability per tick
	WaterMin, WaterMax float64 // watering jump, %
	BattMin, BattMax   float64 // battery drain per tick, %
	MoistureFloor      float64
	BatteryFloor       float64
}

// DefaultParams tuned for 30-minute ticks: 0.4-1.6 %/hr drying, a
// watering roughly every 17 hours, ~0.5 %/day battery drain.
func DefaultParams() Params {
	return Params{
		DryMin: 0.2, DryMax: 0.8,
		NoiseAmp:  0.3,
		WaterProb: 0.03,
		WaterMin:  30, WaterMax: 45,
		BattMin: 0.005, BattMax: 0.015,
		MoistureFloor: 5.0,
		BatteryFloor:  5.0,
	}
}

// Generator advances sensor state. The rand source is injected so tests
// can force specific draws.
type Generator struct {
	params Params
	rng    *rand.Rand
	now    func() time.Time
}

func NewGenerator(params Params, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{params: params, rng: rng, now: time.Now}
}

// uniform draws from [lo, hi).
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Tick advances one sensor by one interval and returns the new state
// plus the reading to insert. Anchors must be validated by the caller;
// degenerate anchors would make the derived raw value meaningless.
func (g *Generator) Tick(sensorID string, st State, a calibration.Anchors) (State, model.Reading) {
	p := g.params

	moisture := st.Moisture
	battery := st.Battery

	// Gradual drying, then sensor noise on top.
	moisture -= g.uniform(p.DryMin, p.DryMax)
	moisture += g.uniform(-p.NoiseAmp, p.NoiseAmp)

	// Occasional watering: a discrete external event, independent
	// across ticks, not inferable from drift alone.
	if g.rng.Float64() < p.WaterProb {
		moisture += g.uniform(p.WaterMin, p.WaterMax)
	}

	// Floor at 5% rather than 0 so a neglected sensor can still
	// recover; "Dry!" classification triggers well above this anyway.
	moisture = round1(clamp(moisture, p.MoistureFloor, 100))

	battery -= g.uniform(p.BattMin, p.BattMax)
	battery = math.Round(clamp(battery, p.BatteryFloor, 100))

	// Raw counts are integral; truncate like the device firmware does.
	raw := int(calibration.PctToRaw(moisture, a))

	st.Moisture = moisture
	st.Battery = battery

	return st, model.Reading{
		SensorID:    sensorID,
		MoistureRaw: raw,
		MoisturePct: moisture,
		Battery:     battery,
		RecordedAt:  g.now().UTC(),
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
