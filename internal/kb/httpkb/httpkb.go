// Package httpkb is the HTTP client for the KB retrieval service.
package httpkb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sift/internal/kb"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/kb/httpkb")

const (
	httpTimeout = 15 * time.Second
	maxK        = 20
)

// Client queries the KB service's search endpoint.
type Client struct {
	endpoint   string
	tenantID   string
	httpClient *http.Client
}

// New creates a KB client for the given endpoint. tenantID is optional and
// sent as X-Scope-OrgID for multi-tenant deployments.
func New(endpoint, tenantID string) *Client {
	return &Client{
		endpoint:   endpoint,
		tenantID:   tenantID,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Hits []kb.Hit `json:"hits"`
}

// Search returns up to k ranked snippets for query, best-first.
func (c *Client) Search(ctx context.Context, query string, k int) ([]kb.Hit, error) {
	switch {
	case k <= 0:
		k = 5
	case k > maxK:
		k = maxK
	}

	ctx, span := tracer.Start(ctx, "kb.search", trace.WithAttributes(
		attribute.String("sift.kb.endpoint", c.endpoint),
		attribute.Int("sift.kb.k", k),
	))
	defer span.End()

	body, err := json.Marshal(searchRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("kb: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("kb: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("kb: search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("kb: search returned %d: %s", resp.StatusCode, string(respBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("kb: decode response: %w", err)
	}

	span.SetAttributes(attribute.Int("sift.kb.hits", len(out.Hits)))
	return out.Hits, nil
}
