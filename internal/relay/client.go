// Package relay delivers relay payloads to the downstream home-automation webhook.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akave-ai/gpsrelay/internal/model"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "gpsrelay/1.0"

	maxResponseBody = 64 << 10
)

// Options configures a Client.
type Options struct {
	URL       string
	Timeout   time.Duration
	Enabled   bool
	UserAgent string
	// Transport is optional; http.DefaultTransport is used when nil.
	Transport http.RoundTripper
}

// Client posts payloads to one fixed URL. Every failure becomes a DeliveryOutcome.
type Client struct {
	url       string
	enabled   bool
	userAgent string
	http      *http.Client
}

// New returns a Client for opts, filling in defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Client{
		url:       opts.URL,
		enabled:   opts.Enabled,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
	}
}

// Enabled reports whether deliveries hit the network.
func (c *Client) Enabled() bool { return c.enabled }

// Deliver makes a single POST attempt. It never retries.
func (c *Client) Deliver(ctx context.Context, payload model.RelayPayload) (out model.DeliveryOutcome) {
	if !c.enabled {
		return model.DeliveryOutcome{Disabled: true}
	}
	defer func() {
		if r := recover(); r != nil {
			out = model.DeliveryOutcome{Detail: fmt.Sprintf("delivery panic: %v", r)}
		}
	}()

	body := payload.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return model.DeliveryOutcome{Detail: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return model.DeliveryOutcome{Detail: fmt.Sprintf("post %s: %v", c.url, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	detail := string(respBody)
	if err != nil {
		detail = fmt.Sprintf("%s (read body: %v)", detail, err)
	}
	return model.DeliveryOutcome{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Detail:     detail,
	}
}
