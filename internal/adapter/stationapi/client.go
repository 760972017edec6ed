// Package stationapi fetches GNSS displacement time series from the
// monitoring network API.
package stationapi

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

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
)

// Client issues range queries against the station data endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a station data client.
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

// FetchData retrieves the raw response body for a station code and optional
// ISO-8601 date bounds. The station code is passed through verbatim; date
// bounds are included only when non-empty. The payload is returned opaque —
// shape detection belongs to normalization.
//
// An empty-after-trim station code is a *domain.ValidationError and no
// request is made. Non-2xx responses and transport failures become
// *domain.FetchError. Neither is retried.
func (c *Client) FetchData(ctx context.Context, statCode, startDate, endDate string) ([]byte, error) {
	if strings.TrimSpace(statCode) == "" {
		c.metrics.StationFetches.WithLabelValues("validation").Inc()
		return nil, &domain.ValidationError{Field: "stat_code", Reason: "must not be empty"}
	}

	params := url.Values{"stat_code": {statCode}}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}

	fullURL := c.baseURL + "/stations/data_by_stat_code?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.StationFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.StationFetches.WithLabelValues("error").Inc()
		c.logger.Error("station data request failed", "stat_code", statCode, "error", err)
		return nil, &domain.FetchError{Detail: "cannot reach station data API", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.StationFetches.WithLabelValues("error").Inc()
		return nil, &domain.FetchError{Detail: "read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.StationFetches.WithLabelValues("error").Inc()
		detail := errorDetail(body, resp.StatusCode)
		c.logger.Warn("station data API error",
			"stat_code", statCode, "status", resp.StatusCode, "detail", detail)
		return nil, &domain.FetchError{StatusCode: resp.StatusCode, Detail: detail}
	}

	c.metrics.StationFetches.WithLabelValues("success").Inc()
	return body, nil
}

// errorDetail extracts the server's detail message from an error body.
// Falls back to the truncated raw body, then to the bare status code.
func errorDetail(body []byte, status int) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("status %d", status)
	}
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
