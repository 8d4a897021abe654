package events

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mnlt/filemigrator/internal/logger"
)

// WebhookSink POSTs every event as JSON to a configured endpoint. Delivery
// failures are logged and dropped; the orchestrator never waits on a retry.
type WebhookSink struct {
	client *resty.Client
	url    string
	log    *logger.Logger
}

// NewWebhookSink creates a WebhookSink for the given URL.
func NewWebhookSink(url string, timeout time.Duration, log *logger.Logger) *WebhookSink {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.SetTimeout(timeout)

	return &WebhookSink{
		client: client,
		url:    url,
		log:    log,
	}
}

func (s *WebhookSink) Publish(ctx context.Context, ev Event) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(ev).
		Post(s.url)
	if err != nil {
		s.log.WithError(err).WithField("event", string(ev.Type)).Warn("Failed to deliver webhook event")
		return
	}
	if resp.IsError() {
		s.log.WithFields(logger.Fields{
			"event":  string(ev.Type),
			"status": resp.StatusCode(),
		}).Warn("Webhook endpoint rejected event")
	}
}
