package limits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Notifier tells support staff that an organization hit a plan ceiling
type Notifier interface {
	NotifyLimitsExceeded(ctx context.Context, organizationID string, err *QuotaExceededError) error
}

// LogNotifier only logs the event
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a notifier that writes to logger
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyLimitsExceeded logs the exceeded limit
func (n *LogNotifier) NotifyLimitsExceeded(ctx context.Context, organizationID string, err *QuotaExceededError) error {
	n.logger.WithField("organization_id", organizationID).WithError(err).Info("support notified of exceeded limit")
	return nil
}

// SlackMessage is the incoming-webhook payload posted to a support channel
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack attachment
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// WebhookNotifier posts a Slack-formatted message to a support webhook
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a notifier posting to url. A nil client uses
// http.DefaultClient.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookNotifier{url: url, client: client, now: time.Now}
}

// FormatSlackMessage renders an exceeded limit for a support channel
func FormatSlackMessage(organizationID string, err *QuotaExceededError, at time.Time) SlackMessage {
	fields := []SlackField{
		{Title: "Organization", Value: organizationID, Short: true},
		{Title: "Limit", Value: string(err.Kind), Short: true},
		{Title: "Allowed", Value: fmt.Sprintf("%d", err.Limit), Short: true},
		{Title: "Attempted", Value: fmt.Sprintf("%d", err.Current+err.Requested), Short: true},
	}
	if err.Resource != nil {
		fields = append(fields, SlackField{Title: "Resource", Value: err.Resource.String()})
	}

	return SlackMessage{
		Text: fmt.Sprintf("Organization %s exceeded its %s limit", organizationID, err.Kind),
		Attachments: []SlackAttachment{{
			Color:  "warning",
			Fields: fields,
			Footer: "gatehouse",
			Ts:     at.Unix(),
		}},
	}
}

// NotifyLimitsExceeded posts the message and fails on a non-2xx response
func (n *WebhookNotifier) NotifyLimitsExceeded(ctx context.Context, organizationID string, qe *QuotaExceededError) error {
	data, err := json.Marshal(FormatSlackMessage(organizationID, qe, n.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}
