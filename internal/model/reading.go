package model

import "time"

// Reading is one moisture measurement for one sensor, either ingested
// live from the device or fabricated by the simulator. MoisturePct is
// always within [0, 100]; Battery stays within [5, 100] when the reading
// comes from the simulator.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	MoistureRaw int       `json:"moisture_raw"`
	MoisturePct float64   `json:"moisture_pct"`
	Battery     float64   `json:"battery"`
	RecordedAt  time.Time `json:"recorded_at"`
}
