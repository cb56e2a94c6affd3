package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSender POSTs each message as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	client *resty.Client
}

// NewWebhookSender creates a webhook sender. A non-empty token is sent as a
// bearer credential.
func NewWebhookSender(cfg config.WebhookConfig) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &WebhookSender{url: cfg.URL, client: client}
}

// Send posts msg. Any non-2xx response is a failure.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("%w: webhook for %s: %w", ErrSendFailed, msg.To, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: webhook for %s: status %d", ErrSendFailed, msg.To, resp.StatusCode())
	}
	return nil
}
