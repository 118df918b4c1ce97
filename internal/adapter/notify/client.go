// Package notify delivers incident notifications to the downstream messaging
// endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Client posts payloads to a single endpoint with a shared API key.
type Client struct {
	url         string
	apiKey      string
	frontendURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a notifier. timeout bounds each request.
func NewClient(url, apiKey, frontendURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:         url,
		apiKey:      apiKey,
		frontendURL: frontendURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Notify sends one notification for inc. Exactly one request is made.
func (c *Client) Notify(ctx context.Context, inc domain.RawIncident, src domain.FeedSource) error {
	p := BuildPayload(inc, src, c.frontendURL)
	if err := c.Forward(ctx, p); err != nil {
		return err
	}
	c.logger.Debug("notification sent", "source", src.ID, "incident_id", inc.ID, "slug", p.AlertSlug)
	return nil
}

// Forward posts an already-built payload. Errors are *NotifyError.
func (c *Client) Forward(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return &NotifyError{Kind: KindNetwork, Err: fmt.Errorf("encode payload: %w", err)}
	}
	return c.ForwardRaw(ctx, body)
}

// ForwardRaw posts body as-is. Errors are *NotifyError.
func (c *Client) ForwardRaw(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &NotifyError{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotifyError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &NotifyError{Kind: KindUnauthorized, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &NotifyError{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}
	return nil
}

// URL is the downstream endpoint.
func (c *Client) URL() string { return c.url }
