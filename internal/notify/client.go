// Package notify delivers digest notifications to the outbound notifier
// service over HTTP.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"applyflow/internal/logging"
)

// ClientConfig holds configuration for the notifier client.
type ClientConfig struct {
	NotifierURL string        `yaml:"notifier_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// Notification is the payload delivered for one digest batch.
type Notification struct {
	BatchID          string    `json:"batch_id"`
	Recipient        string    `json:"recipient"`
	PostingID        string    `json:"posting_id"`
	PostingTitle     string    `json:"posting_title"`
	Company          string    `json:"company"`
	BatchDate        string    `json:"batch_date"`
	ApplicationCount int       `json:"application_count"`
	Subject          string    `json:"subject"`
	Body             string    `json:"body"`
	Timestamp        time.Time `json:"timestamp"`
}

// Client posts digest notifications to the notifier endpoint, retrying
// transient failures with a linear backoff between attempts.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a new notifier client.
func NewClient(config *ClientConfig, logger logging.Logger) (*Client, error) {
	if config.NotifierURL == "" {
		return nil, fmt.Errorf("notifier URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Send delivers a notification. The error from the last attempt is returned
// when every retry fails; the caller decides whether the batch stays unsent.
func (c *Client) Send(ctx context.Context, notification *Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		lastErr = c.post(ctx, payload)
		if lastErr == nil {
			c.logger.Info("Digest notification delivered", map[string]interface{}{
				"batch_id":  notification.BatchID,
				"recipient": notification.Recipient,
				"attempt":   attempt,
			})
			return nil
		}

		c.logger.Warn("Digest notification attempt failed", map[string]interface{}{
			"batch_id": notification.BatchID,
			"attempt":  attempt,
			"error":    lastErr.Error(),
		})

		if attempt < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return fmt.Errorf("notification delivery failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.NotifierURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}
	return nil
}
