package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Webhook posts a small JSON envelope to any HTTP endpoint. When Secret is
// set the body is signed with HMAC-SHA256 in X-Signature-256.
type Webhook struct {
	URL    string
	Secret string
	Label  string
	Client *http.Client
}

func NewWebhook(url, secret, label string) *Webhook {
	return &Webhook{
		URL:    url,
		Secret: secret,
		Label:  label,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Label     string `json:"label,omitempty"`
	Text      string `json:"text"`
}

func (w *Webhook) Send(ctx context.Context, text string) error {
	id := uuid.NewString()
	body, err := json.Marshal(webhookPayload{
		ID:        id,
		Event:     "alert",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Label:     w.Label,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", id)
	if w.Secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+sign(body, []byte(w.Secret)))
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func sign(body, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
