package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/pkg/logger"
)

// WebhookNotifier sends notifications via HTTP webhook
type WebhookNotifier struct {
	config config.NotifierConfig
	client *http.Client
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg config.NotifierConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the notifier name
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send posts the event as JSON to the configured webhook URL
func (w *WebhookNotifier) Send(ctx context.Context, event *Event) error {
	if w.config.URL == "" {
		return fmt.Errorf("webhook URL is not configured")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DraftForge-Notifier/1.0")

	// Add HMAC signature if secret is configured
	if w.config.Secret != "" {
		req.Header.Set("X-DraftForge-Signature", w.computeSignature(body))
	}

	logger.Debug("Sending webhook notification",
		zap.String("url", w.config.URL),
		zap.String("event_type", string(event.Type)),
	)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	// Read response body for error logging
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-success status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	logger.Debug("Webhook notification sent successfully",
		zap.Int("status_code", resp.StatusCode),
	)

	return nil
}

// computeSignature computes HMAC-SHA256 signature for the payload
func (w *WebhookNotifier) computeSignature(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(w.config.Secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
