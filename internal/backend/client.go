package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const cacheTTL = 5 * time.Minute

// Client calls the NL-to-SQL query endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	cache      *gocache.Cache
}

// NewClient creates a backend client. The http.Client carries no timeout:
// a query may legitimately run for as long as the database needs, and the
// caller's context still propagates cancellation.
func NewClient(endpoint string, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     logger,
		tracer:     tracer,
		meter:      meter,
		cache:      gocache.New(cacheTTL, 10*time.Minute),
	}
}

// cacheKey digests everything that can change the backend's answer.
func cacheKey(req QueryRequest) string {
	h := sha256.New()
	for _, msg := range req.ChatHistory {
		h.Write([]byte(msg.Role))
		h.Write([]byte(msg.Content))
	}
	h.Write([]byte(req.Question))
	h.Write([]byte(req.DatabaseURL))
	h.Write([]byte(req.Provider))
	h.Write([]byte(req.SQLMode))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Query sends one request to the backend and returns its parsed response.
// Identical requests within the cache TTL are answered without a network
// call. Any transport failure or non-2xx status is returned as an error;
// a structured {error} body supplies the message when present.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	ctx, span := c.tracer.Start(ctx, "nl2sql_query")
	defer span.End()

	start := time.Now()

	key := cacheKey(req)
	if val, ok := c.cache.Get(key); ok {
		c.logger.Info("cache hit", "key", key[:16])
		resp := val.(QueryResponse)
		return &resp, nil
	}

	req.Model = Model
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.recordDuration(ctx, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorBody
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s", apiErr.Error)
		}
		return nil, fmt.Errorf("API error: %s", resp.Status)
	}

	var apiResp QueryResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.cache.Set(key, apiResp, gocache.DefaultExpiration)
	c.recordResult(ctx, len(apiResp.Results))

	c.logger.Info("query completed",
		"status", resp.StatusCode,
		"rows", len(apiResp.Results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &apiResp, nil
}

func (c *Client) recordDuration(ctx context.Context, d time.Duration) {
	histogram, err := c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(d.Milliseconds()))
	}
}

func (c *Client) recordResult(ctx context.Context, rows int) {
	queries, err := c.meter.Int64Counter(
		"nl2sql.queries",
		metric.WithDescription("Completed NL-to-SQL queries"),
	)
	if err == nil {
		queries.Add(ctx, 1)
	}
	returned, err := c.meter.Int64Counter(
		"nl2sql.rows_returned",
		metric.WithDescription("Rows returned across all queries"),
	)
	if err == nil {
		returned.Add(ctx, int64(rows))
	}
}
