package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"guto-paylink/internal/api"
)

// Client notifies a merchant's backend when one of their paylink payments
// completes. Best-effort with bounded retries; a merchant outage never
// affects the payer flow.
type Client struct {
	httpClient *http.Client
	maxRetries int
	verbose    bool
}

// NewClient creates a new webhook client.
func NewClient(timeout time.Duration, maxRetries int, verbose bool) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		verbose:    verbose,
	}
}

// NotifyPaid sends the paid notification with retry logic.
func (c *Client) NotifyPaid(webhookURL string, payload api.WebhookPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			time.Sleep(backoff)

			if c.verbose {
				log.Printf("[WEBHOOK] Retry attempt %d for ref %s", attempt, payload.TransactionReference)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
		req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(payloadBytes))
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to create webhook request: %v", err)
			continue
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("webhook request failed: %v", err)
			if c.verbose {
				log.Printf("[WEBHOOK] Request failed for ref %s: %v", payload.TransactionReference, err)
			}
			continue
		}

		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if c.verbose {
				log.Printf("[WEBHOOK] Notified merchant of paid ref %s", payload.TransactionReference)
			}
			return nil
		}

		lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		if c.verbose {
			log.Printf("[WEBHOOK] Bad status %d for ref %s", resp.StatusCode, payload.TransactionReference)
		}
	}

	log.Printf("[WEBHOOK] Failed to notify merchant after %d attempts: %s (last error: %v)",
		c.maxRetries+1, payload.TransactionReference, lastErr)

	return lastErr
}
