package model

import "github.com/lekoianemerik/moist/internal/calibration"

// SensorConfig is one row of the current_sensors view: an active sensor
// and its calibration anchors. The view already filters is_active = true,
// so every SensorConfig the registry returns belongs to the active set.
type SensorConfig struct {
	SensorID string `json:"sensor_id"`
	calibration.Anchors
}
