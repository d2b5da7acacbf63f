// Package registry talks to the hosted backend's PostgREST API: the
// current_sensors and current_plants views and the readings table. It is
// the ground truth for the active sensor set.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lekoianemerik/moist/internal/model"
)

// Config identifies the backend project. The secret key bypasses row
// level security and must never reach a browser-facing deployment.
type Config struct {
	URL       string
	SecretKey string
	Timeout   time.Duration
}

// Client is a thin PostgREST client behind a circuit breaker, so a dead
// backend fails fast instead of stalling every cron run.
type Client struct {
	cfg  Config
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "registry",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   cb,
	}
}

// ActiveSensors returns the active sensor set with calibration anchors.
// The current_sensors view already filters is_active = true.
func (c *Client) ActiveSensors(ctx context.Context) ([]model.SensorConfig, error) {
	var out []model.SensorConfig
	err := c.getJSON(ctx, "/rest/v1/current_sensors?select=*&order=sensor_id", &out)
	if err != nil {
		return nil, fmt.Errorf("fetch active sensors: %w", err)
	}
	return out, nil
}

// ActivePlants returns the plant configurations for the status view.
func (c *Client) ActivePlants(ctx context.Context) ([]model.PlantConfig, error) {
	var out []model.PlantConfig
	err := c.getJSON(ctx, "/rest/v1/current_plants?select=*&order=plant_id", &out)
	if err != nil {
		return nil, fmt.Errorf("fetch active plants: %w", err)
	}
	return out, nil
}

// InsertReadings bulk-inserts one batch of readings. Whole-batch
// semantics: either the backend accepts all rows or the call fails.
func (c *Client) InsertReadings(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	body, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("marshal readings: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.URL+"/rest/v1/readings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.auth(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("insert readings: HTTP %d: %s", resp.StatusCode, snippet)
		}
		return nil, nil
	})
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+path, nil)
		if err != nil {
			return nil, err
		}
		c.auth(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})
	return err
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("apikey", c.cfg.SecretKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
}
