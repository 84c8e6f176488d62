package ispuapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/ispu-monitor-service/internal/domain"
	"github.com/couchcryptid/ispu-monitor-service/internal/observability"
)

// Endpoint paths relative to the API base URL.
const (
	PathHealth           = "/health"
	PathStations         = "/stations"
	PathMapStations      = "/map/stations"
	PathAirQualityLatest = "/air-quality/latest"
)

// maxErrorBody bounds how much of a failed response is echoed into errors.
const maxErrorBody = 512

// Client talks to the ISPU monitoring REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an API client. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Health calls the upstream health endpoint.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return get[json.RawMessage](ctx, c, PathHealth, nil)
}

// MapStations returns every station with its latest ISPU and pollutant readings.
func (c *Client) MapStations(ctx context.Context) ([]domain.Station, error) {
	return get[[]domain.Station](ctx, c, PathMapStations, nil)
}

// FetchStations implements poller.StationSource.
func (c *Client) FetchStations(ctx context.Context) ([]domain.Station, error) {
	return c.MapStations(ctx)
}

// Stations returns station metadata, optionally restricted to one province.
func (c *Client) Stations(ctx context.Context, province string) ([]domain.Station, error) {
	var params url.Values
	if province != "" {
		params = url.Values{"province": {province}}
	}
	return get[[]domain.Station](ctx, c, PathStations, params)
}

// StationByID returns a single station.
func (c *Client) StationByID(ctx context.Context, id string) (domain.Station, error) {
	return get[domain.Station](ctx, c, PathStations+"/"+url.PathEscape(id), nil)
}

// LatestAirQuality returns the most recent reading of every station.
func (c *Client) LatestAirQuality(ctx context.Context) ([]domain.AirQuality, error) {
	return get[[]domain.AirQuality](ctx, c, PathAirQualityLatest, nil)
}

func get[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	var zero T

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(path, start)
	if err != nil {
		return zero, fmt.Errorf("ispu api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return zero, fmt.Errorf("ispu api %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env domain.Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", path, err)
	}
	if !env.Success {
		msg := "API request failed"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return zero, fmt.Errorf("ispu api %s: %s", path, msg)
	}

	c.logger.Debug("ispu api request complete", "path", path, "duration", time.Since(start))
	return env.Data, nil
}

func (c *Client) observe(path string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.APIRequestDuration.WithLabelValues(endpointLabel(path)).Observe(time.Since(start).Seconds())
}

// endpointLabel collapses per-station paths so metric cardinality stays bounded.
func endpointLabel(path string) string {
	if strings.HasPrefix(path, PathStations+"/") {
		return PathStations + "/{id}"
	}
	return path
}
