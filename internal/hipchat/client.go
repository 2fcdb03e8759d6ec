// Package hipchat talks to the chat platform's v2 REST API.
package hipchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/util"
	"github.com/pysugar/hipchat-connect/internal/version"
)

// DefaultAPIBase is the hosted platform's v2 root.
const DefaultAPIBase = "https://api.hipchat.com/v2"

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status code %d: %s", e.StatusCode, e.Message())
}

// Message is error.message from the platform envelope, else the raw body.
func (e *APIError) Message() string {
	if msg := apperr.PlatformMessage([]byte(e.Body)); msg != "" {
		return msg
	}
	return e.Body
}

// RateLimited reports whether the platform rejected the call for rate limiting.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Client performs authenticated calls against the platform API.
type Client struct {
	httpClient *http.Client
	apiBase    string
	log        *slog.Logger
	now        func() time.Time
}

// NewClient creates a platform client rooted at apiBase.
func NewClient(apiBase string, timeout time.Duration, log *slog.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    strings.TrimRight(apiBase, "/"),
		log:        log,
		now:        time.Now,
	}
}

// HTTPClient is the underlying client, shared with the token exchange.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// URL joins path segments onto the API base, escaping each one.
func (c *Client) URL(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.apiBase)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// PostJSON sends payload as JSON with bearer auth and returns the response
// body. Non-2xx responses come back as *APIError. Nothing is retried here.
func (c *Client) PostJSON(ctx context.Context, endpoint, token string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hipconnect/"+version.Version)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	c.log.Debug("platform call",
		"url", endpoint,
		"status", resp.StatusCode,
		"token", util.MaskSecret(token),
		"duration", c.now().Sub(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: ParseRetryAfter(resp.Header, c.now()),
		}
		c.log.Warn("platform call rejected",
			"url", endpoint,
			"status", resp.StatusCode,
			"retry_after", apiErr.RetryAfter,
			"body", util.TruncateBytes(respBody))
		return nil, apiErr
	}
	return respBody, nil
}
