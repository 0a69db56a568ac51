package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the alertd HTTP API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type report struct {
	Entity  string `json:"entity"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
}

func (c *Client) ReportDown(ctx context.Context, entity, subject, text string) error {
	return c.post(ctx, "/api/reports/down", report{Entity: entity, Subject: subject, Text: text})
}

func (c *Client) ReportUp(ctx context.Context, entity, subject, text string) error {
	return c.post(ctx, "/api/reports/up", report{Entity: entity, Subject: subject, Text: text})
}

func (c *Client) SendAlert(ctx context.Context, text string) error {
	return c.post(ctx, "/api/alerts", map[string]string{"text": text})
}

func (c *Client) Clear(ctx context.Context) error {
	return c.post(ctx, "/api/clear", nil)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("contact API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("API returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("API returned %s", resp.Status)
	}
	return nil
}
