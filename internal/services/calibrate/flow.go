// Package calibrate drives the interactive 3-point calibration session:
// walk the operator through air, water, and soil conditions, reduce each
// condition's samples to a median anchor, sanity-check the triple, and
// print the values to enter in the management UI. The hand-off is a
// deliberate manual step, not an API.
package calibrate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lekoianemerik/moist/internal/acquisition"
	"github.com/lekoianemerik/moist/internal/calibration"
)

// SampleSource is the acquisition collaborator, satisfied by
// *acquisition.Collector and by scripted fakes in tests.
type SampleSource interface {
	Collect(ctx context.Context, n int, timeout time.Duration) ([]acquisition.Sample, error)
}

// Per-sample acquisition budget. The device publishes roughly once per
// second; ten times that leaves room for a slow or lossy link.
const perSampleTimeout = 10 * time.Second

type step struct {
	name        string
	pct         string
	instruction string
}

var steps = []step{
	{"Air", "0%", "Hold the sensor in open air (not touching anything)."},
	{"Water", "100%", "Submerge the sensor in water (up to the marked line)."},
	{"Soil", "50%", "Insert the sensor into fresh potting soil (straight from the bag)."},
}

// Result is one finished calibration session.
type Result struct {
	SensorID string
	Anchors  calibration.Anchors
	Ordered  bool
}

// Flow runs the session against an injected sample source and I/O pair,
// so the whole thing is testable without a broker or a terminal.
type Flow struct {
	Source   SampleSource
	In       io.Reader
	Out      io.Writer
	SensorID string
	Samples  int
}

// Run walks all three steps and returns the resulting anchors. It fails
// only when a step yields no samples or the triple is degenerate; an
// ordering violation is reported but the operator may still proceed.
func (f *Flow) Run(ctx context.Context) (Result, error) {
	in := bufio.NewScanner(f.In)
	timeout := time.Duration(f.Samples) * perSampleTimeout

	fmt.Fprintf(f.Out, "\n=== Calibrating sensor #%s ===\n", f.SensorID)
	fmt.Fprintf(f.Out, "Samples per condition: %d\n\n", f.Samples)

	anchorByStep := make(map[string]float64, len(steps))
	for i, st := range steps {
		fmt.Fprintf(f.Out, "STEP %d/%d — %s (%s reference)\n", i+1, len(steps), st.name, st.pct)
		fmt.Fprintln(f.Out, st.instruction)
		fmt.Fprint(f.Out, "Press Enter when ready...")
		in.Scan()

		fmt.Fprintf(f.Out, "  Collecting %d readings...\n", f.Samples)
		samples, err := f.Source.Collect(ctx, f.Samples, timeout)
		if err != nil {
			return Result{}, fmt.Errorf("%s step: %w", st.name, err)
		}

		raws := make([]float64, len(samples))
		for j, s := range samples {
			raws[j] = s.Raw
		}
		anchor, err := calibration.Median(raws)
		if err != nil {
			return Result{}, fmt.Errorf("%s step: %w", st.name, err)
		}
		anchorByStep[st.name] = anchor
		fmt.Fprintf(f.Out, "  -> %s median: %.1f\n\n", st.name, anchor)
	}

	a := calibration.Anchors{
		Air:   anchorByStep["Air"],
		Soil:  anchorByStep["Soil"],
		Water: anchorByStep["Water"],
	}

	if err := a.Validate(); err != nil {
		return Result{}, fmt.Errorf("calibration unusable: %w", err)
	}

	ordered := a.Ordered()
	if !ordered {
		fmt.Fprintln(f.Out, "WARNING: expected air > soil > water (higher count = drier).")
		fmt.Fprintf(f.Out, "  Got: air=%.1f, soil=%.1f, water=%.1f\n", a.Air, a.Soil, a.Water)
		fmt.Fprintln(f.Out, "  The sensor may not be working correctly, or conditions were wrong.")
		fmt.Fprintln(f.Out)
	}

	f.printSummary(a, ordered)
	return Result{SensorID: f.SensorID, Anchors: a, Ordered: ordered}, nil
}

func (f *Flow) printSummary(a calibration.Anchors, ordered bool) {
	line := "=================================================="
	fmt.Fprintln(f.Out, line)
	fmt.Fprintln(f.Out, "CALIBRATION RESULTS")
	fmt.Fprintln(f.Out, line)
	fmt.Fprintf(f.Out, "  Sensor:       #%s\n", f.SensorID)
	fmt.Fprintf(f.Out, "  Air   (0%%):   %.1f\n", a.Air)
	fmt.Fprintf(f.Out, "  Soil  (50%%):  %.1f\n", a.Soil)
	fmt.Fprintf(f.Out, "  Water (100%%): %.1f\n\n", a.Water)

	if ordered {
		fmt.Fprintln(f.Out, "Mapping check (piecewise linear):")
		for _, c := range []struct {
			label string
			raw   float64
		}{{"Air", a.Air}, {"Soil", a.Soil}, {"Water", a.Water}} {
			fmt.Fprintf(f.Out, "  %-6s raw=%8.1f -> %5.1f%%\n", c.label, c.raw, calibration.RawToPct(c.raw, a))
		}
		fmt.Fprintln(f.Out)
	}

	fmt.Fprintln(f.Out, "Enter these values in the web dashboard:")
	fmt.Fprintf(f.Out, "  Manage Sensors -> Sensor #%s -> Edit\n", f.SensorID)
	fmt.Fprintf(f.Out, "    Cal. air:   %.1f\n", a.Air)
	fmt.Fprintf(f.Out, "    Cal. water: %.1f\n", a.Water)
	fmt.Fprintf(f.Out, "    Cal. soil:  %.1f\n", a.Soil)
}
