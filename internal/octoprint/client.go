package octoprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// defaultRequestTimeout bounds each REST call when none is configured.
	defaultRequestTimeout = 5 * time.Second

	// maxErrorBody limits how much of an error response is read.
	maxErrorBody = 1024

	apiKeyHeader = "X-Api-Key"
)

// Client queries printer state over the OctoPrint REST API.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	zMu      sync.RWMutex
	currentZ *float64
}

// NewClient creates a REST client for the server at baseURL.
//
// Parameters:
//   - baseURL: Server root, e.g. http://octopi.local
//   - apiKey: Application or global API key sent as X-Api-Key
//   - timeout: Per-request timeout (defaults to 5s when <= 0)
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// get performs a GET and decodes a 200 response into out.
// The status code is returned so callers can interpret 409.
func (c *Client) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrRequestFailed, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort for the message
		return resp.StatusCode, fmt.Errorf("%w: %s: %d %s", ErrUnexpectedStatus, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, path, err)
	}
	return resp.StatusCode, nil
}

// IsOperational reports whether the printer is connected and ready.
// OctoPrint answers 409 when no printer is connected.
func (c *Client) IsOperational(ctx context.Context) (bool, error) {
	var resp printerResponse
	status, err := c.get(ctx, "/api/printer?exclude=temperature,sd", &resp)
	if status == http.StatusConflict {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return resp.State.Flags["operational"], nil
}

// CurrentTemperatures returns the latest reading of every sensor.
// An empty map is returned when no printer is connected.
func (c *Client) CurrentTemperatures(ctx context.Context) (Temperatures, error) {
	var resp printerResponse
	status, err := c.get(ctx, "/api/printer?exclude=sd,state", &resp)
	if status == http.StatusConflict {
		return Temperatures{}, nil
	}
	if err != nil {
		return nil, err
	}

	temps := make(Temperatures, len(resp.Temperature))
	for sensor, raw := range resp.Temperature {
		// Skip "history" and other non-sensor entries.
		if readings, ok := raw.(map[string]any); ok {
			temps[sensor] = readings
		}
	}
	return temps, nil
}

// CurrentJob returns the selected job.
func (c *Client) CurrentJob(ctx context.Context) (*Job, error) {
	var resp jobResponse
	if _, err := c.get(ctx, "/api/job", &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// CurrentData returns job, progress and state combined with the tracked Z height.
func (c *Client) CurrentData(ctx context.Context) (*CurrentData, error) {
	var resp jobResponse
	if _, err := c.get(ctx, "/api/job", &resp); err != nil {
		return nil, err
	}
	return &CurrentData{
		State:    resp.State,
		Job:      resp.Job,
		Progress: resp.Progress,
		CurrentZ: c.CurrentZ(),
	}, nil
}

// SetCurrentZ records the nozzle height.
func (c *Client) SetCurrentZ(z float64) {
	c.zMu.Lock()
	c.currentZ = &z
	c.zMu.Unlock()
}

// ResetCurrentZ forgets the nozzle height.
func (c *Client) ResetCurrentZ() {
	c.zMu.Lock()
	c.currentZ = nil
	c.zMu.Unlock()
}

// CurrentZ returns the last recorded nozzle height, or nil if unknown.
func (c *Client) CurrentZ() *float64 {
	c.zMu.RLock()
	defer c.zMu.RUnlock()
	if c.currentZ == nil {
		return nil
	}
	z := *c.currentZ
	return &z
}
