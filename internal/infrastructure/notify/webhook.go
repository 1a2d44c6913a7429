// Package notify implements the outbound notification transports.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradeguard/escrow/internal/ports"
)

// WebhookNotifier POSTs events to an external delivery service (the bot or
// messaging frontend) which renders and routes them to the recipient.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type webhookEnvelope struct {
	RecipientID string         `json:"recipientId"`
	Event       string         `json:"event"`
	Payload     map[string]any `json:"payload"`
	SentAt      time.Time      `json:"sentAt"`
}

func (n *WebhookNotifier) Send(ctx context.Context, recipientID string, event ports.Event, payload map[string]any) error {
	body, err := json.Marshal(webhookEnvelope{
		RecipientID: recipientID,
		Event:       string(event),
		Payload:     payload,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivering notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
