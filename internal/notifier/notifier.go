package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Event describes a tracked item that just showed up in stock.
type Event struct {
	Category string
	Emoji    string
	Item     string
	Target   string // webhook URL resolved for the item
	FoundAt  time.Time
}

// Beat is a periodic liveness signal.
type Beat struct {
	SentAt   time.Time
	Interval time.Duration
	Target   string
}

// Notifier delivers stock alerts and heartbeats to downstream channels.
// Delivery is best effort: callers log returned errors and move on.
type Notifier interface {
	Found(ctx context.Context, evt Event) error
	Heartbeat(ctx context.Context, beat Beat) error
}

// Nop is a no-op notifier useful in tests.
type Nop struct{}

func (Nop) Found(_ context.Context, _ Event) error    { return nil }
func (Nop) Heartbeat(_ context.Context, _ Beat) error { return nil }

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Found(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Found(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Heartbeat(ctx context.Context, beat Beat) error {
	var errs []error
	for _, n := range m {
		if err := n.Heartbeat(ctx, beat); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FoundMessage renders the human-readable stock alert.
func FoundMessage(evt Event) string {
	if evt.Emoji == "" {
		return fmt.Sprintf("%s is in stock!", evt.Item)
	}
	return fmt.Sprintf("%s %s is in stock!", evt.Emoji, evt.Item)
}

// HeartbeatMessage renders the liveness message with its timestamp.
func HeartbeatMessage(beat Beat) string {
	return fmt.Sprintf("✅ Script running - %s", beat.SentAt.Format("2006-01-02 15:04:05"))
}

// TestMessage renders the one-off message used to verify webhook wiring.
func TestMessage(at time.Time) string {
	return fmt.Sprintf("🧪 Test alert from stockwatch at %s", at.Format("2006-01-02 15:04:05"))
}
