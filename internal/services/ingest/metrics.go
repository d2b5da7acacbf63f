package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry    *prometheus.Registry
	ingested    prometheus.Counter
	dropped     *prometheus.CounterVec
	writeErrors prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moist_ingested_readings_total",
			Help: "Telemetry messages converted and written to storage.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moist_dropped_messages_total",
			Help: "Telemetry messages dropped before storage, by reason.",
		}, []string{"reason"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moist_influx_write_errors_total",
			Help: "Failed InfluxDB point writes.",
		}),
	}
	m.registry.MustRegister(m.ingested, m.dropped, m.writeErrors)
	return m
}
