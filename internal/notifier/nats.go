package notifier

import (
	"context"
	"time"

	"github.com/venkytv/stockwatch/pkg/heartbeat"
)

// NATSHeartbeat mirrors heartbeats onto a NATS subject so an external
// heartbeat monitor can alert when the watcher goes quiet. Stock alerts are
// not published.
type NATSHeartbeat struct {
	Publisher   *heartbeat.Publisher
	Subject     string
	Description string
	StartedAt   time.Time
}

func (NATSHeartbeat) Found(_ context.Context, _ Event) error { return nil }

func (n NATSHeartbeat) Heartbeat(ctx context.Context, beat Beat) error {
	return n.Publisher.Publish(ctx, heartbeat.Message{
		Subject:     n.Subject,
		GeneratedAt: beat.SentAt.UTC(),
		StartedAt:   n.StartedAt.UTC(),
		Interval:    beat.Interval,
		Description: n.Description,
	})
}
