package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultURL               = "https://growagardenvalues.com/stock/stocks.php"
	DefaultUserAgent         = "Mozilla/5.0"
	DefaultPollInterval      = 60 * time.Second
	DefaultFetchTimeout      = 10 * time.Second
	DefaultWebhookTimeout    = 5 * time.Second
	DefaultWebhookField      = "value1"
	DefaultHeartbeatInterval = time.Hour
	DefaultHeartbeatSubject  = "heartbeat.stockwatch"
	DefaultLogFile           = "stockwatch.log"
	DefaultLogLevel          = "info"
	DefaultShortReset        = 5 * time.Minute
	DefaultEggReset          = 30 * time.Minute
)

// Config is the resolved runtime configuration of the watcher.
type Config struct {
	URL          string
	UserAgent    string
	PollInterval time.Duration
	FetchTimeout time.Duration
	StatusAddr   string
	Webhook      Webhook
	Heartbeat    Heartbeat
	Log          Log
	Categories   []Category
}

// Webhook configures the outbound notification endpoint.
type Webhook struct {
	URL        string
	Field      string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Heartbeat configures the liveness notification.
type Heartbeat struct {
	Interval    time.Duration
	WebhookURL  string // overrides Webhook.URL for heartbeats
	NATSURL     string // empty disables the NATS heartbeat
	Subject     string
	Description string
}

type Log struct {
	Level   string
	File    string
	Console bool
}

// Category groups tracked items that share a notification memory and reset window.
type Category struct {
	Name          string
	Emoji         string
	ResetInterval time.Duration
	WebhookURL    string
	Items         []Item
}

// Item is a tracked item display name with an optional dedicated webhook.
type Item struct {
	Name       string
	WebhookURL string
}

// Key is the lower-cased match key of the item.
func (i Item) Key() string {
	return strings.ToLower(strings.TrimSpace(i.Name))
}

// DefaultCategories returns the stock table watched when no categories are configured.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:          "seed",
			Emoji:         "🌱",
			ResetInterval: DefaultShortReset,
			Items:         items("Sugar Apple", "Loquat", "Feijoa", "Pitcher Plant", "Mushroom", "Carrot"),
		},
		{
			Name:          "gear",
			Emoji:         "🚿",
			ResetInterval: DefaultShortReset,
			Items:         items("Master Sprinkler"),
		},
		{
			Name:          "egg",
			Emoji:         "🥚",
			ResetInterval: DefaultEggReset,
			Items:         items("Bug Egg", "Mythical Egg", "Paradise Egg", "Bee Egg"),
		},
	}
}

func items(names ...string) []Item {
	out := make([]Item, 0, len(names))
	for _, n := range names {
		out = append(out, Item{Name: n})
	}
	return out
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Webhook.Field == "" {
		c.Webhook.Field = DefaultWebhookField
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = DefaultWebhookTimeout
	}
	if c.Webhook.RatePerSec > 0 && c.Webhook.Burst <= 0 {
		c.Webhook.Burst = 1
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.Subject == "" {
		c.Heartbeat.Subject = DefaultHeartbeatSubject
	}
	if c.Heartbeat.Description == "" {
		c.Heartbeat.Description = "stockwatch"
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.File == "" {
		c.Log.File = DefaultLogFile
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}
	return c
}

// Validate checks that the watcher can run with this configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("url is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be >0, got %s", c.PollInterval)
	}
	if c.Webhook.RatePerSec < 0 {
		return errors.New("webhook.rate_per_sec cannot be negative")
	}
	if len(c.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	if c.HeartbeatTarget() == "" {
		return errors.New("webhook.url or heartbeat.webhook is required")
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		path := fmt.Sprintf("categories[%d]", i)
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("%s.name is required", path)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%s.name: duplicate category %q", path, name)
		}
		seen[name] = struct{}{}
		if cat.ResetInterval <= 0 {
			return fmt.Errorf("%s.reset_interval must be >0, got %s", path, cat.ResetInterval)
		}
		if len(cat.Items) == 0 {
			return fmt.Errorf("%s.items: category %q has no items", path, name)
		}
		keys := make(map[string]struct{}, len(cat.Items))
		for j, it := range cat.Items {
			itemPath := fmt.Sprintf("%s.items[%d]", path, j)
			key := it.Key()
			if key == "" {
				return fmt.Errorf("%s: item name is required", itemPath)
			}
			if _, dup := keys[key]; dup {
				return fmt.Errorf("%s: duplicate item %q", itemPath, it.Name)
			}
			keys[key] = struct{}{}
			if c.ItemTarget(cat, it) == "" {
				return fmt.Errorf("%s: no webhook for %q (set webhook.url)", itemPath, it.Name)
			}
		}
	}
	return nil
}

// ItemTarget resolves the webhook URL for an item: item, then category, then global.
func (c Config) ItemTarget(cat Category, it Item) string {
	if it.WebhookURL != "" {
		return it.WebhookURL
	}
	if cat.WebhookURL != "" {
		return cat.WebhookURL
	}
	return c.Webhook.URL
}

// HeartbeatTarget resolves the webhook URL used for heartbeats.
func (c Config) HeartbeatTarget() string {
	if c.Heartbeat.WebhookURL != "" {
		return c.Heartbeat.WebhookURL
	}
	return c.Webhook.URL
}
