package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/pkg/logger"
)

// SlackNotifier sends notifications via Slack incoming webhook
type SlackNotifier struct {
	config config.NotifierConfig
	client *http.Client
}

// SlackMessage represents a Slack message payload
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(cfg config.NotifierConfig) *SlackNotifier {
	return &SlackNotifier{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the notifier name
func (s *SlackNotifier) Name() string {
	return "slack"
}

// Send sends a notification to Slack
func (s *SlackNotifier) Send(ctx context.Context, event *Event) error {
	if s.config.URL == "" {
		return fmt.Errorf("Slack webhook URL is not configured")
	}

	body, err := json.Marshal(s.buildMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create Slack request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Sending Slack notification",
		zap.String("event_type", string(event.Type)),
	)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	// Slack returns "ok" on success
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("Slack returned error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	logger.Debug("Slack notification sent successfully")

	return nil
}

// buildMessage builds a Slack message with rich formatting
func (s *SlackNotifier) buildMessage(event *Event) *SlackMessage {
	var emoji, color, statusText string
	switch event.Type {
	case EventJobCompleted:
		emoji = ":white_check_mark:"
		color = "good"
		statusText = "Completed"
	case EventJobCancelled:
		emoji = ":no_entry_sign:"
		color = "warning"
		statusText = "Cancelled"
	default:
		emoji = ":x:"
		color = "danger"
		statusText = "Failed"
	}

	fields := []SlackField{
		{
			Title: "Document",
			Value: event.DocumentName,
			Short: false,
		},
		{
			Title: "Job ID",
			Value: event.JobID,
			Short: true,
		},
		{
			Title: "Mode",
			Value: event.Mode,
			Short: true,
		},
		{
			Title: "Sections",
			Value: fmt.Sprintf("%d completed, %d failed of %d", event.Completed, event.Failed, event.Total),
			Short: true,
		},
		{
			Title: "Time",
			Value: event.Timestamp.Format("2006-01-02 15:04:05 MST"),
			Short: true,
		},
	}

	if event.Type == EventJobFailed && event.ErrorMessage != "" {
		fields = append(fields, SlackField{
			Title: "Error",
			Value: truncateText(event.ErrorMessage, 500),
			Short: false,
		})
	}

	if event.Type == EventJobCompleted && event.DurationMs > 0 {
		fields = append(fields, SlackField{
			Title: "Duration",
			Value: fmt.Sprintf("%.2fs", float64(event.DurationMs)/1000),
			Short: true,
		})
	}

	return &SlackMessage{
		Text: fmt.Sprintf("%s *Generation Job %s*", emoji, statusText),
		Attachments: []SlackAttachment{
			{
				Color:     color,
				Title:     fmt.Sprintf("Job: %s", event.JobID),
				Fields:    fields,
				Footer:    "DraftForge Notification",
				Timestamp: event.Timestamp.Unix(),
			},
		},
	}
}

// truncateText truncates text to a maximum length
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen-3] + "..."
}
