package model

// Status buckets a plant's latest moisture reading against its
// per-plant thresholds.
type Status string

const (
	StatusNoData      Status = "No Data"
	StatusDry         Status = "Dry!"
	StatusNeedsWater  Status = "Needs Water"
	StatusOverwatered Status = "Overwatered"
	StatusHealthy     Status = "Healthy"
)

// PlantConfig is one row of the current_plants view: a plant, the sensor
// watching it, and its moisture comfort band. WaterBelow < IdealMin <
// IdealMax for a sensible configuration; Classify does not assume it.
type PlantConfig struct {
	PlantID    string  `json:"plant_id"`
	SensorID   string  `json:"sensor_id"`
	Name       string  `json:"plant_name"`
	Position   string  `json:"plant_position"`
	IdealMin   float64 `json:"ideal_min"`
	IdealMax   float64 `json:"ideal_max"`
	WaterBelow float64 `json:"water_below"`
}

// Classify maps the latest reading onto a status label. A nil reading
// means the sensor has never reported.
func (p PlantConfig) Classify(latest *Reading) Status {
	if latest == nil {
		return StatusNoData
	}
	m := latest.MoisturePct
	switch {
	case m <= p.WaterBelow:
		return StatusDry
	case m < p.IdealMin:
		return StatusNeedsWater
	case m > p.IdealMax:
		return StatusOverwatered
	default:
		return StatusHealthy
	}
}
