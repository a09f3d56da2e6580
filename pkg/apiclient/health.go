package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Health is the body of GET /health.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
		DBLatency string `json:"db_latency"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Readiness is the body of GET /health/ready.
type Readiness struct {
	Status string `json:"status"`
	Data   struct {
		TargetCommunity uint64 `json:"target_community"`
		Mappings        int    `json:"mappings"`
		MappingsLoaded  string `json:"mappings_loaded"`
		AutoSync        bool   `json:"auto_sync"`
		SweepRunning    bool   `json:"sweep_running"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether the liveness check passed.
func (h *Health) Healthy() bool { return h.Status == "healthy" }

// Health calls the liveness endpoint. An unhealthy server still yields a
// decoded body; only transport and decoding failures are errors.
func (c *Client) Health() (*Health, error) {
	var h Health
	if err := c.checkHealth("/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Readiness calls the readiness endpoint.
func (c *Client) Readiness() (*Readiness, error) {
	var r Readiness
	if err := c.checkHealth("/health/ready", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// checkHealth decodes 200 and 503 alike; the health endpoints answer 503
// with the same body shape when a check fails.
func (c *Client) checkHealth(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("rolesync API unreachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return decodeError(resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
