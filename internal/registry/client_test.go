package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoianemerik/moist/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL, SecretKey: "sk-test", Timeout: time.Second})
}

func TestActiveSensors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/current_sensors", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sensor_id":"1","calibration_air":3200,"calibration_soil":2200,"calibration_water":1400},
			{"sensor_id":"2","calibration_air":2910.5,"calibration_soil":2100,"calibration_water":1500}
		]`))
	})

	sensors, err := c.ActiveSensors(context.Background())
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	assert.Equal(t, "1", sensors[0].SensorID)
	assert.Equal(t, 3200.0, sensors[0].Air)
	assert.Equal(t, 2910.5, sensors[1].Air)
}

func TestActiveSensorsBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
	})

	_, err := c.ActiveSensors(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestInsertReadings(t *testing.T) {
	var got []model.Reading
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/readings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	batch := []model.Reading{
		{SensorID: "1", MoistureRaw: 2700, MoisturePct: 25.0, Battery: 88},
	}
	require.NoError(t, c.InsertReadings(context.Background(), batch))
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].SensorID)
	assert.Equal(t, 2700, got[0].MoistureRaw)
}

func TestInsertReadingsEmptyBatchSkipsCall(t *testing.T) {
	called := false
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	require.NoError(t, c.InsertReadings(context.Background(), nil))
	assert.False(t, called)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		_, err := c.ActiveSensors(context.Background())
		require.Error(t, err)
	}
	_, err := c.ActiveSensors(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
