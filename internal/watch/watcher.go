package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/venkytv/stockwatch/internal/notifier"
)

// Fetcher returns the lower-cased visible text of the stock page.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

type Config struct {
	Categories      []Category
	PollEvery       time.Duration
	HeartbeatEvery  time.Duration
	HeartbeatTarget string
	StatusAddr      string
	Logger          *zerolog.Logger

	// Now and After replace the wall clock and timer in tests.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// TickReport summarises what a single tick did.
type TickReport struct {
	StartedAt      time.Time
	Duration       time.Duration
	FetchErr       error
	Found          []notifier.Event
	NotifyFailures int
	Reset          []string
	Heartbeat      bool
	HeartbeatErr   error
}

type Watcher struct {
	cfg      Config
	fetcher  Fetcher
	notifier notifier.Notifier
	logger   zerolog.Logger

	mu            sync.Mutex
	state         []*categoryState
	startedAt     time.Time
	lastHeartbeat time.Time
	lastTick      time.Time
	lastFetchErr  string
}

// New builds a watcher. Reset and heartbeat clocks start now.
func New(f Fetcher, n notifier.Notifier, cfg Config) *Watcher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Minute
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	if n == nil {
		n = notifier.Nop{}
	}

	now := cfg.Now()
	state := make([]*categoryState, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		state = append(state, newCategoryState(c, now))
	}
	return &Watcher{
		cfg:           cfg,
		fetcher:       f,
		notifier:      n,
		logger:        logger,
		state:         state,
		startedAt:     now,
		lastHeartbeat: now,
	}
}

// Run polls until ctx is cancelled. Cancellation is a normal stop and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	if w.fetcher == nil {
		return errors.New("fetcher is required")
	}
	if w.cfg.StatusAddr != "" {
		if err := w.serveStatus(ctx); err != nil {
			return err
		}
	}

	w.logger.Info().
		Int("categories", len(w.state)).
		Dur("interval", w.cfg.PollEvery).
		Dur("heartbeat_every", w.cfg.HeartbeatEvery).
		Msg("🌿 stock watcher started")

	for {
		start := time.Now()
		w.Tick(ctx)
		if ctx.Err() != nil {
			w.logger.Info().Msg("✋ stopped manually")
			return nil
		}

		wait := SleepDuration(w.cfg.PollEvery, time.Since(start))
		w.logger.Debug().Dur("sleep", wait).Msg("tick complete")
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("✋ stopped manually")
			return nil
		case <-w.cfg.After(wait):
		}
	}
}

// SleepDuration is how long to wait after a tick that took elapsed so ticks
// start every interval. A tick that overran yields zero; missed ticks are not
// caught up.
func SleepDuration(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}

// Tick runs one fetch, match-and-notify, reset-check and heartbeat-check pass.
// If ctx is cancelled the tick is abandoned where it stands.
func (w *Watcher) Tick(ctx context.Context) (report TickReport) {
	report.StartedAt = w.cfg.Now()
	defer func() { report.Duration = w.cfg.Now().Sub(report.StartedAt) }()

	text, err := w.fetcher.Fetch(ctx)
	if ctx.Err() != nil {
		return report
	}
	if err != nil {
		report.FetchErr = err
		w.logger.Error().Err(err).Msg("error while checking stock")
	} else {
		report.Found = w.recordNew(text, report.StartedAt)
		for _, evt := range report.Found {
			if ctx.Err() != nil {
				return report
			}
			w.logger.Info().
				Str("category", evt.Category).
				Str("item", evt.Item).
				Msgf("%s %s found: %s", evt.Emoji, evt.Category, evt.Item)
			if err := w.notifier.Found(ctx, evt); err != nil {
				report.NotifyFailures++
				w.logger.Error().Err(err).
					Str("category", evt.Category).
					Str("item", evt.Item).
					Msg("failed to send webhook")
			}
		}
	}

	now := w.cfg.Now()
	report.Reset = w.resetDue(now)

	if w.heartbeatDue(now) {
		report.Heartbeat = true
		w.logger.Info().Msg("♥ sending heartbeat")
		beat := notifier.Beat{SentAt: now, Interval: w.cfg.HeartbeatEvery, Target: w.cfg.HeartbeatTarget}
		if err := w.notifier.Heartbeat(ctx, beat); err != nil {
			report.HeartbeatErr = err
			w.logger.Error().Err(err).Msg("heartbeat failed")
		}
	}

	w.mu.Lock()
	w.lastTick = report.StartedAt
	w.lastFetchErr = ""
	if report.FetchErr != nil {
		w.lastFetchErr = report.FetchErr.Error()
	}
	w.mu.Unlock()
	return report
}

// recordNew matches text against the table and remembers every item not yet
// alerted in its category's window. Items are remembered whether or not the
// notification later succeeds.
func (w *Watcher) recordNew(text string, at time.Time) []notifier.Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var found []notifier.Event
	for _, s := range w.state {
		for _, hit := range Match(text, []Category{s.category}) {
			if s.seen(hit.Item.Key) {
				continue
			}
			s.remember(hit.Item)
			found = append(found, notifier.Event{
				Category: s.category.Name,
				Emoji:    s.category.Emoji,
				Item:     hit.Item.Name,
				Target:   hit.Item.Target,
				FoundAt:  at,
			})
		}
	}
	return found
}

func (w *Watcher) resetDue(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var reset []string
	for _, s := range w.state {
		if !s.resetDue(now) {
			continue
		}
		s.reset(now)
		reset = append(reset, s.category.Name)
		w.logger.Info().Str("category", s.category.Name).Msgf("🔁 resetting %s alerts", s.category.Name)
	}
	return reset
}

// heartbeatDue advances the heartbeat clock when a beat is due. The clock
// moves whether or not the send later succeeds.
func (w *Watcher) heartbeatDue(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.lastHeartbeat) < w.cfg.HeartbeatEvery {
		return false
	}
	w.lastHeartbeat = now
	return true
}

// Notified reports whether key is in category's notification memory.
func (w *Watcher) Notified(category, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.state {
		if s.category.Name == category {
			return s.seen(key)
		}
	}
	return false
}
