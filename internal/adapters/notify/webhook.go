package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/okian/fallsense/internal/domain/model"
)

// Webhook POSTs alerts as JSON to a single endpoint.
type Webhook struct {
	url    string
	token  string
	client *resty.Client
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithToken sets the endpoint credential. It is sent both as the token query
// parameter and as a bearer token.
func WithToken(token string) WebhookOption {
	return func(w *Webhook) { w.token = token }
}

// WithClient replaces the resty client.
func WithClient(c *resty.Client) WebhookOption {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// NewWebhook creates a Webhook for url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url: url,
		client: resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, a model.Alert) error {
	req := w.client.R().
		SetContext(ctx).
		SetBody(NewPayload(a))
	if w.token != "" {
		req.SetQueryParam("token", w.token).SetAuthToken(w.token)
	}

	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode())
	}
	return nil
}
