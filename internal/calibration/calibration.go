// Package calibration implements the 3-point piecewise-linear mapping
// between raw capacitive sensor counts and moisture percentages.
//
// A sensor is calibrated against three reference conditions: held in open
// air (0%), inserted in fresh potting soil (50%), and submerged in water
// (100%). The raw value is a charge/discharge cycle count, so higher
// means drier and a healthy sensor satisfies Air > Soil > Water.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNoSamples is returned by Median when the sample set is empty. The
// acquisition window elapsed without a single reading; the operator needs
// to check that the sensor is actually publishing.
var ErrNoSamples = errors.New("no samples collected")

// Anchors are the three raw reference values of one sensor, in raw
// sensor units.
type Anchors struct {
	Air   float64 `json:"calibration_air"`
	Soil  float64 `json:"calibration_soil"`
	Water float64 `json:"calibration_water"`
}

// Validate rejects anchor triples that would make the mapping divide by
// zero. It does not check ordering; see Ordered.
func (a Anchors) Validate() error {
	if a.Air == a.Soil {
		return fmt.Errorf("degenerate calibration: air == soil (%.1f)", a.Air)
	}
	if a.Soil == a.Water {
		return fmt.Errorf("degenerate calibration: soil == water (%.1f)", a.Soil)
	}
	return nil
}

// Ordered reports whether the anchors satisfy Air > Soil > Water. A
// violation means the sensor (or the calibration procedure) is suspect,
// but the mapping formulas stay well-defined, so callers treat it as a
// warning rather than an error.
func (a Anchors) Ordered() bool {
	return a.Air > a.Soil && a.Soil > a.Water
}

// RawToPct converts a raw count to a moisture percentage in [0, 100].
//
// The mapping is piecewise linear: [Soil, Air] covers 0-50% and
// [Water, Soil] covers 50-100%. Values at or beyond the dry/wet anchors
// clamp to 0/100 instead of extrapolating. Exactly 50 at raw == Soil.
// Callers must Validate the anchors first.
func RawToPct(raw float64, a Anchors) float64 {
	switch {
	case raw >= a.Air:
		return 0.0
	case raw >= a.Soil:
		return 50.0 * (a.Air - raw) / (a.Air - a.Soil)
	case raw >= a.Water:
		return 50.0 + 50.0*(a.Soil-raw)/(a.Soil-a.Water)
	default:
		return 100.0
	}
}

// PctToRaw is the inverse of RawToPct, used by the simulator to fabricate
// raw counts from a target percentage. For pct in [0, 100] and validated
// anchors, RawToPct(PctToRaw(p, a), a) == p up to rounding.
func PctToRaw(pct float64, a Anchors) float64 {
	if pct <= 50 {
		return a.Air - (pct/50.0)*(a.Air-a.Soil)
	}
	return a.Soil - ((pct-50)/50.0)*(a.Soil-a.Water)
}

// Median reduces one condition's sample set to a single representative
// value, rounded to one decimal place. The median is robust to the noise
// spikes a mean would drag along. An even count averages the two middle
// sorted values.
func Median(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	s := make([]float64, len(samples))
	copy(s, samples)
	sort.Float64s(s)

	var m float64
	n := len(s)
	if n%2 == 1 {
		m = s[n/2]
	} else {
		m = (s[n/2-1] + s[n/2]) / 2
	}
	return math.Round(m*10) / 10, nil
}
