package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/venkytv/stockwatch/internal/config"
	"github.com/venkytv/stockwatch/internal/fetcher"
	"github.com/venkytv/stockwatch/internal/logging"
	"github.com/venkytv/stockwatch/internal/notifier"
	"github.com/venkytv/stockwatch/internal/watch"
	"github.com/venkytv/stockwatch/pkg/heartbeat"
)

const defaultConfigFile = "stockwatch.yaml"

type options struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:               "stockwatch",
		Short:             "Watch a stock page and send webhook alerts when tracked items appear",
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		RunE:              func(cmd *cobra.Command, _ []string) error { return runWatcher(cmd, opts) },
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", envDefault("STOCKWATCH_CONFIG", ""),
		"config file (default ./"+defaultConfigFile+" when present)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", envBool("DEBUG", false), "Enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Poll the stock page until interrupted",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return runWatcher(cmd, opts) },
		},
		&cobra.Command{
			Use:   "test-alert",
			Short: "Send a single test message to the configured webhook",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return runTestAlert(cmd, opts) },
		},
		&cobra.Command{
			Use:   "check",
			Short: "Fetch the stock page once and list tracked items currently present",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return runCheck(cmd, opts) },
		},
	)
	return root
}

func loadConfig(opts *options) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	return config.Load(path)
}

func newLogger(cfg config.Config, opts *options) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File:    cfg.Log.File,
		Debug:   opts.debug,
	})
}

func newWebhook(cfg config.Config) *notifier.Webhook {
	return notifier.NewWebhook(notifier.WebhookConfig{
		Field:      cfg.Webhook.Field,
		Timeout:    cfg.Webhook.Timeout,
		RatePerSec: cfg.Webhook.RatePerSec,
		Burst:      cfg.Webhook.Burst,
	})
}

func newFetcher(cfg config.Config) *fetcher.Page {
	return fetcher.New(fetcher.Config{
		URL:       cfg.URL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
	})
}

func runWatcher(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, closer, err := newLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var notify notifier.Notifier = newWebhook(cfg)
	if cfg.Heartbeat.NATSURL != "" {
		nc, err := connectWithRetry(ctx, logger, cfg.Heartbeat.NATSURL)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("✋ stopped manually")
				return nil
			}
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer nc.Drain()
		notify = notifier.Multi{notify, notifier.NATSHeartbeat{
			Publisher:   heartbeat.NewPublisher(nc, ""),
			Subject:     cfg.Heartbeat.Subject,
			Description: cfg.Heartbeat.Description,
			StartedAt:   time.Now(),
		}}
	}

	w := watch.New(newFetcher(cfg), notify, watch.Config{
		Categories:      watch.TableFromConfig(cfg),
		PollEvery:       cfg.PollInterval,
		HeartbeatEvery:  cfg.Heartbeat.Interval,
		HeartbeatTarget: cfg.HeartbeatTarget(),
		StatusAddr:      cfg.StatusAddr,
		Logger:          &logger,
	})
	return w.Run(ctx)
}

func runTestAlert(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Webhook.URL == "" {
		return errors.New("webhook.url is required (or set STOCKWATCH_WEBHOOK_URL)")
	}
	logger, closer, err := newLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	msg := notifier.TestMessage(time.Now())
	logger.Info().Str("message", msg).Msg("sending test alert")
	if err := newWebhook(cfg).Send(cmd.Context(), cfg.Webhook.URL, msg); err != nil {
		logger.Error().Err(err).Msg("failed to send test alert")
		return err
	}
	logger.Info().Msg("✅ test alert sent")
	return nil
}

func runCheck(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout+time.Second)
	defer cancel()

	text, err := newFetcher(cfg).Fetch(ctx)
	if err != nil {
		return err
	}
	printHits(cmd.OutOrStdout(), cfg.URL, watch.Match(text, watch.TableFromConfig(cfg)))
	return nil
}

func printHits(w io.Writer, url string, hits []watch.Hit) {
	if len(hits) == 0 {
		fmt.Fprintf(w, "No tracked items found on %s\n", url)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tITEM")
	for _, h := range hits {
		fmt.Fprintf(tw, "%s %s\t%s\n", h.Category.Emoji, h.Category.Name, h.Item.Name)
	}
	_ = tw.Flush()
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true" || v == "TRUE" || v == "yes" || v == "on"
	}
	return fallback
}

func connectWithRetry(ctx context.Context, logger zerolog.Logger, url string) (*nats.Conn, error) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		nc, err := nats.Connect(
			url,
			nats.Name("stockwatch"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.RetryOnFailedConnect(true),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn().Err(err).Msg("nats disconnected")
					return
				}
				logger.Warn().Msg("nats disconnected")
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info().Msg("nats reconnected")
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				logger.Warn().Msg("nats connection closed")
			}),
		)
		if err == nil {
			return nc, nil
		}

		logger.Error().Err(err).Dur("retry_in", backoff).Msg("connect to nats failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff = min(backoff*2, maxBackoff)
		}
	}
}
