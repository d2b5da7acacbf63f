package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lekoianemerik/moist/internal/model"
)

// NewHTTPMux exposes the service's query surface.
//
//	GET /healthz              liveness + influx reachability
//	GET /data/latest          latest reading per sensor; ?minutes=N and
//	                          ?source=influx|cache|auto (default auto)
//	GET /plants/status        plant thresholds joined with latest readings
//	GET /metrics              prometheus
func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st := map[string]any{"status": "ok", "influx_ok": svc.influxOK(ctx) == nil}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := q.Get("source")
		if source == "" {
			source = "auto"
		}
		minutes := 60 * 24
		if v := q.Get("minutes"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				minutes = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			list []model.Reading
			used string
		)
		if source == "influx" || source == "auto" {
			if got, err := svc.queryLatest(ctx, minutes); err == nil && len(got) > 0 {
				list, used = got, "influx"
			}
		}
		if used == "" {
			list, used = svc.Latest(), "cache"
		}
		sort.Slice(list, func(i, j int) bool { return list[i].SensorID < list[j].SensorID })

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(list)
	})

	mux.HandleFunc("/plants/status", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		plants, err := svc.anchors.ActivePlants(ctx)
		if err != nil {
			http.Error(w, "registry unavailable", http.StatusBadGateway)
			return
		}

		latest := make(map[string]model.Reading, len(svc.Latest()))
		for _, rd := range svc.Latest() {
			latest[rd.SensorID] = rd
		}

		type plantStatus struct {
			model.PlantConfig
			Status model.Status   `json:"status"`
			Latest *model.Reading `json:"latest,omitempty"`
		}
		out := make([]plantStatus, 0, len(plants))
		for _, p := range plants {
			ps := plantStatus{PlantConfig: p}
			if rd, ok := latest[p.SensorID]; ok {
				ps.Latest = &rd
				ps.Status = p.Classify(&rd)
			} else {
				ps.Status = p.Classify(nil)
			}
			out = append(out, ps)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].PlantID < out[j].PlantID })

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(svc.metrics.registry, promhttp.HandlerOpts{}))

	return mux
}

// queryLatest asks Influx for the newest point per sensor in the window.
func (s *Service) queryLatest(ctx context.Context, minutes int) ([]model.Reading, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == "moisture_pct" or r._field == "moisture_raw")
  |> pivot(rowKey: ["_time","sensor_id"], columnKey: ["_field"], valueColumn: "_value")
  |> group(columns: ["sensor_id"])
  |> sort(columns: ["_time"], desc: true)
  |> first(column: "_time")
`, s.bucket, minutes, s.measurement)

	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []model.Reading
	for res.Next() {
		rec := res.Record()
		rd := model.Reading{RecordedAt: rec.Time()}
		if v, ok := rec.ValueByKey("sensor_id").(string); ok {
			rd.SensorID = v
		}
		if v, ok := rec.ValueByKey("moisture_pct").(float64); ok {
			rd.MoisturePct = v
		}
		switch v := rec.ValueByKey("moisture_raw").(type) {
		case int64:
			rd.MoistureRaw = int(v)
		case float64:
			rd.MoistureRaw = int(v)
		}
		out = append(out, rd)
	}
	return out, res.Err()
}
