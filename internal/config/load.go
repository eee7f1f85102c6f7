package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// File mirrors the YAML configuration file. Durations are Go duration strings ("90s", "5m").
type File struct {
	URL          string         `yaml:"url"`
	UserAgent    string         `yaml:"user_agent"`
	PollInterval string         `yaml:"poll_interval"`
	FetchTimeout string         `yaml:"fetch_timeout"`
	StatusAddr   string         `yaml:"status_addr"`
	Webhook      WebhookFile    `yaml:"webhook"`
	Heartbeat    HeartbeatFile  `yaml:"heartbeat"`
	Log          LogFile        `yaml:"log"`
	Categories   []CategoryFile `yaml:"categories"`
}

type WebhookFile struct {
	URL        string  `yaml:"url"`
	Field      string  `yaml:"field"`
	Timeout    string  `yaml:"timeout"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

type HeartbeatFile struct {
	Interval    string `yaml:"interval"`
	Webhook     string `yaml:"webhook"`
	NATSURL     string `yaml:"nats_url"`
	Subject     string `yaml:"subject"`
	Description string `yaml:"description"`
}

type LogFile struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console *bool  `yaml:"console"`
}

type CategoryFile struct {
	Name          string     `yaml:"name"`
	Emoji         string     `yaml:"emoji"`
	ResetInterval string     `yaml:"reset_interval"`
	Webhook       string     `yaml:"webhook"`
	Items         []ItemFile `yaml:"items"`
}

// ItemFile accepts either a bare item name or a mapping with name and webhook.
type ItemFile struct {
	Name    string `yaml:"name"`
	Webhook string `yaml:"webhook"`
}

func (i *ItemFile) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		i.Name = value.Value
		return nil
	}
	type plain ItemFile
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*i = ItemFile(p)
	return nil
}

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and defaults. It does not validate the result.
func Load(path string) (Config, error) {
	var f File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(bytes.NewReader(data), &f); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg, err := f.resolve()
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg.WithDefaults(), nil
}

func decode(r io.Reader, f *File) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (f File) resolve() (Config, error) {
	cfg := Config{
		URL:        strings.TrimSpace(f.URL),
		UserAgent:  f.UserAgent,
		StatusAddr: f.StatusAddr,
		Webhook: Webhook{
			URL:        strings.TrimSpace(f.Webhook.URL),
			Field:      f.Webhook.Field,
			RatePerSec: f.Webhook.RatePerSec,
			Burst:      f.Webhook.Burst,
		},
		Heartbeat: Heartbeat{
			WebhookURL:  strings.TrimSpace(f.Heartbeat.Webhook),
			NATSURL:     f.Heartbeat.NATSURL,
			Subject:     f.Heartbeat.Subject,
			Description: f.Heartbeat.Description,
		},
		Log: Log{
			Level:   f.Log.Level,
			File:    f.Log.File,
			Console: true,
		},
	}
	if f.Log.Console != nil {
		cfg.Log.Console = *f.Log.Console
	}

	var err error
	if cfg.PollInterval, err = ParseDurationField("poll_interval", f.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.FetchTimeout, err = ParseDurationField("fetch_timeout", f.FetchTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Webhook.Timeout, err = ParseDurationField("webhook.timeout", f.Webhook.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Heartbeat.Interval, err = ParseDurationField("heartbeat.interval", f.Heartbeat.Interval); err != nil {
		return Config{}, err
	}

	for i, cf := range f.Categories {
		path := fmt.Sprintf("categories[%d]", i)
		cat := Category{
			Name:       strings.ToLower(strings.TrimSpace(cf.Name)),
			Emoji:      cf.Emoji,
			WebhookURL: strings.TrimSpace(cf.Webhook),
		}
		cat.ResetInterval, err = ParseDurationOrDefault(path+".reset_interval", cf.ResetInterval, defaultReset(cat.Name))
		if err != nil {
			return Config{}, err
		}
		for _, it := range cf.Items {
			cat.Items = append(cat.Items, Item{Name: strings.TrimSpace(it.Name), WebhookURL: strings.TrimSpace(it.Webhook)})
		}
		cfg.Categories = append(cfg.Categories, cat)
	}
	return cfg, nil
}

func defaultReset(category string) time.Duration {
	if category == "egg" {
		return DefaultEggReset
	}
	return DefaultShortReset
}

func applyEnv(cfg *Config) {
	override := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	override("STOCKWATCH_URL", &cfg.URL)
	override("STOCKWATCH_WEBHOOK_URL", &cfg.Webhook.URL)
	override("STOCKWATCH_NATS_URL", &cfg.Heartbeat.NATSURL)
	override("STOCKWATCH_LOG_LEVEL", &cfg.Log.Level)
	override("STOCKWATCH_LOG_FILE", &cfg.Log.File)
	override("STOCKWATCH_STATUS_ADDR", &cfg.StatusAddr)

	if v, ok := lookupEnv("STOCKWATCH_POLL_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v, ok := lookupEnv("STOCKWATCH_LOG_CONSOLE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Console = b
		}
	}
}
