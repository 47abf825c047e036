// Package feed fetches earthquake collections from the upstream data provider.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
)

// maxBodyBytes bounds a provider response.
const maxBodyBytes = 32 << 20

// Client fetches event collections for a data source mode.
type Client struct {
	httpClient *http.Client
	urls       map[domain.Mode]string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a provider client for the live and stored endpoints.
func NewClient(liveURL, storedURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		urls: map[domain.Mode]string{
			domain.Live:   liveURL,
			domain.Stored: storedURL,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns the collection for mode. Any failure (transport error,
// timeout, non-200 status, malformed body) is logged and yields an empty
// collection so the map can still render. A cancelled ctx, as when a newer
// request replaces this one, also yields an empty collection but is not
// counted as a failure.
func (c *Client) Fetch(ctx context.Context, mode domain.Mode) domain.EventCollection {
	start := time.Now()
	collection, err := c.fetch(ctx, mode)
	c.metrics.FetchDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())

	if errors.Is(ctx.Err(), context.Canceled) {
		c.metrics.FetchRequests.WithLabelValues(mode.String(), "cancelled").Inc()
		c.logger.Debug("earthquake data fetch cancelled", "mode", mode.String())
		return domain.EventCollection{}
	}
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(mode.String(), "error").Inc()
		c.logger.Warn("earthquake data fetch failed, rendering empty collection",
			"mode", mode.String(),
			"error", err,
		)
		return domain.EventCollection{}
	}

	c.metrics.FetchRequests.WithLabelValues(mode.String(), "success").Inc()
	c.metrics.EventsFetched.Add(float64(collection.Len()))
	c.logger.Info("earthquake data fetched",
		"mode", mode.String(),
		"cities", len(collection),
		"events", collection.Len(),
	)
	return collection
}

func (c *Client) fetch(ctx context.Context, mode domain.Mode) (domain.EventCollection, error) {
	u, ok := c.urls[mode]
	if !ok || u == "" {
		return nil, fmt.Errorf("no endpoint configured for %s source", mode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s feed request: %w", mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return domain.ParseFeed(body)
}
