// Package report renders documents to PDF through a Gotenberg service.
package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps interactions with the Gotenberg API.
type Client struct {
	http *resty.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("report: gotenberg health: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("report: gotenberg returned status %d", resp.StatusCode())
	}
	return nil
}

// RenderHTML converts raw HTML into a PDF document using Gotenberg.
func (c *Client) RenderHTML(ctx context.Context, html []byte) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("files", "index.html", bytes.NewReader(html)).
		SetFormData(map[string]string{
			"paperWidth":  "3.15",
			"paperHeight": "11.7",
			"marginTop":   "0.2",
			"marginLeft":  "0.1",
			"marginRight": "0.1",
		}).
		Post("/forms/chromium/convert/html")
	if err != nil {
		return nil, fmt.Errorf("report: render: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("report: render failed with status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
