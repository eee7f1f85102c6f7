package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultField = "value1"

// WebhookConfig configures a Webhook.
type WebhookConfig struct {
	Field      string // JSON field carrying the message, "value1" for IFTTT
	Timeout    time.Duration
	RatePerSec float64 // 0 disables throttling
	Burst      int
}

// Webhook posts messages as a single-field JSON object.
type Webhook struct {
	field   string
	client  *resty.Client
	limiter *rate.Limiter
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Field == "" {
		cfg.Field = defaultField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	w := &Webhook{
		field:  cfg.Field,
		client: resty.New().SetTimeout(cfg.Timeout),
	}
	if cfg.RatePerSec > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, cfg.Burst))
	}
	return w
}

func (w *Webhook) Found(ctx context.Context, evt Event) error {
	return w.Send(ctx, evt.Target, FoundMessage(evt))
}

func (w *Webhook) Heartbeat(ctx context.Context, beat Beat) error {
	return w.Send(ctx, beat.Target, HeartbeatMessage(beat))
}

// Send posts one message to target. The response body is ignored.
func (w *Webhook) Send(ctx context.Context, target, message string) error {
	if target == "" {
		return errors.New("webhook target is required")
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook throttle: %w", err)
		}
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{w.field: message}).
		Post(target)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("webhook returned status %s", resp.Status())
	}
	return nil
}
