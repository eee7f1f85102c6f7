package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/venkytv/stockwatch/internal/config"
	"github.com/venkytv/stockwatch/internal/notifier"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeFetcher struct {
	text  string
	err   error
	calls int
	hook  func(call int)
}

func (f *fakeFetcher) Fetch(_ context.Context) (string, error) {
	f.calls++
	if f.hook != nil {
		f.hook(f.calls)
	}
	return f.text, f.err
}

type recordingNotifier struct {
	found    []notifier.Event
	beats    []notifier.Beat
	foundErr error
	beatErr  error
}

func (r *recordingNotifier) Found(_ context.Context, evt notifier.Event) error {
	r.found = append(r.found, evt)
	return r.foundErr
}

func (r *recordingNotifier) Heartbeat(_ context.Context, beat notifier.Beat) error {
	r.beats = append(r.beats, beat)
	return r.beatErr
}

func (r *recordingNotifier) items() []string {
	out := make([]string, 0, len(r.found))
	for _, e := range r.found {
		out = append(out, e.Item)
	}
	return out
}

func defaultTable() []Category {
	cfg := config.Default()
	cfg.Webhook.URL = "https://hooks.example.com/stock"
	return TableFromConfig(cfg)
}

func newTestWatcher(t *testing.T, text string) (*Watcher, *fakeFetcher, *recordingNotifier, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)}
	f := &fakeFetcher{text: text}
	n := &recordingNotifier{}
	w := New(f, n, Config{
		Categories:      defaultTable(),
		HeartbeatTarget: "https://hooks.example.com/heartbeat",
		Now:             clock.Now,
	})
	return w, f, n, clock
}

func TestAbsentItemsAreNeitherNotifiedNorRemembered(t *testing.T) {
	w, _, n, _ := newTestWatcher(t, "today's stock: blueberry, tomato, watering can")

	report := w.Tick(context.Background())
	require.Empty(t, report.Found)
	require.Empty(t, n.found)
	require.False(t, w.Notified("seed", "sugar apple"))
	require.False(t, w.Notified("egg", "bug egg"))
}

func TestSugarAppleAndBugEggScenario(t *testing.T) {
	w, _, n, _ := newTestWatcher(t, "seeds: sugar apple x1 | eggs: bug egg x3 | gear: trowel")

	report := w.Tick(context.Background())
	require.NoError(t, report.FetchErr)
	require.Len(t, n.found, 2)

	require.Equal(t, notifier.Event{
		Category: "seed", Emoji: "🌱", Item: "Sugar Apple",
		Target: "https://hooks.example.com/stock", FoundAt: report.StartedAt,
	}, n.found[0])
	require.Equal(t, "egg", n.found[1].Category)
	require.Equal(t, "🥚", n.found[1].Emoji)
	require.Equal(t, "Bug Egg", n.found[1].Item)
	require.Equal(t, "🥚 Bug Egg is in stock!", notifier.FoundMessage(n.found[1]))

	require.True(t, w.Notified("seed", "sugar apple"))
	require.True(t, w.Notified("egg", "bug egg"))
	require.False(t, w.Notified("egg", "sugar apple"))
}

func TestRepeatedTicksNotifyOncePerWindow(t *testing.T) {
	w, _, n, clock := newTestWatcher(t, "sugar apple, master sprinkler, paradise egg")

	for i := 0; i < 4; i++ {
		w.Tick(context.Background())
		clock.Advance(time.Minute)
	}
	require.Equal(t, []string{"Sugar Apple", "Master Sprinkler", "Paradise Egg"}, n.items())
}

func TestMushroomNotifiedOnlyOnFirstTickWithinWindow(t *testing.T) {
	w, _, n, clock := newTestWatcher(t, "mushroom")

	first := w.Tick(context.Background())
	clock.Advance(time.Minute)
	second := w.Tick(context.Background())

	require.Len(t, first.Found, 1)
	require.Empty(t, second.Found)
	require.Equal(t, []string{"Mushroom"}, n.items())
}

func TestReappearingItemNotifiedAgainAfterReset(t *testing.T) {
	w, f, n, clock := newTestWatcher(t, "sugar apple and bug egg")

	w.Tick(context.Background())
	require.Len(t, n.found, 2)

	f.text = "nothing today"
	clock.Advance(5 * time.Minute)
	report := w.Tick(context.Background())
	require.Equal(t, []string{"seed", "gear"}, report.Reset)
	require.False(t, w.Notified("seed", "sugar apple"))
	require.True(t, w.Notified("egg", "bug egg"))

	f.text = "sugar apple and bug egg"
	clock.Advance(time.Minute)
	report = w.Tick(context.Background())
	require.Len(t, report.Found, 1)
	require.Equal(t, "Sugar Apple", report.Found[0].Item)

	clock.Advance(24 * time.Minute)
	report = w.Tick(context.Background())
	require.Equal(t, []string{"seed", "gear", "egg"}, report.Reset)

	clock.Advance(time.Minute)
	report = w.Tick(context.Background())
	require.Equal(t, []string{"Sugar Apple", "Bug Egg"}, []string{report.Found[0].Item, report.Found[1].Item})
	require.Equal(t, []string{"Sugar Apple", "Bug Egg", "Sugar Apple", "Sugar Apple", "Bug Egg"}, n.items())
}

func TestResetHappensWithoutMatches(t *testing.T) {
	w, f, _, clock := newTestWatcher(t, "")
	f.err = errors.New("dial tcp: i/o timeout")

	clock.Advance(30 * time.Minute)
	report := w.Tick(context.Background())
	require.Error(t, report.FetchErr)
	require.Equal(t, []string{"seed", "gear", "egg"}, report.Reset)

	st := w.Snapshot(clock.Now())
	for _, c := range st.Categories {
		require.Equal(t, clock.Now(), c.LastReset)
	}
}

func TestNotifyFailureStillRemembersItem(t *testing.T) {
	w, _, n, clock := newTestWatcher(t, "loquat feijoa")
	n.foundErr = errors.New("webhook returned status 500")

	report := w.Tick(context.Background())
	require.Equal(t, 2, report.NotifyFailures)
	require.Len(t, n.found, 2, "one failure does not block the next notification")
	require.True(t, w.Notified("seed", "loquat"))

	clock.Advance(time.Minute)
	report = w.Tick(context.Background())
	require.Empty(t, report.Found)
	require.Len(t, n.found, 2)
}

func TestSubstringFalsePositiveIsKept(t *testing.T) {
	w, _, n, _ := newTestWatcher(t, "new: golden carrots bundle")

	w.Tick(context.Background())
	require.Equal(t, []string{"Carrot"}, n.items())
}

func TestHeartbeatSentOncePerInterval(t *testing.T) {
	w, _, n, clock := newTestWatcher(t, "nothing in stock")

	for i := 0; i < 59; i++ {
		clock.Advance(time.Minute)
		require.False(t, w.Tick(context.Background()).Heartbeat)
	}
	clock.Advance(time.Minute)
	report := w.Tick(context.Background())
	require.True(t, report.Heartbeat)
	require.Len(t, n.beats, 1)
	require.Empty(t, n.found)
	require.Equal(t, clock.Now(), n.beats[0].SentAt)
	require.Equal(t, time.Hour, n.beats[0].Interval)
	require.Equal(t, "https://hooks.example.com/heartbeat", n.beats[0].Target)

	clock.Advance(time.Minute)
	require.False(t, w.Tick(context.Background()).Heartbeat)
	require.Equal(t, clock.Now().Add(-time.Minute), w.Snapshot(clock.Now()).LastHeartbeat)
}

func TestHeartbeatFailureAdvancesClock(t *testing.T) {
	w, _, n, clock := newTestWatcher(t, "")
	n.beatErr = errors.New("connection refused")

	clock.Advance(time.Hour)
	report := w.Tick(context.Background())
	require.True(t, report.Heartbeat)
	require.Error(t, report.HeartbeatErr)

	clock.Advance(time.Minute)
	require.False(t, w.Tick(context.Background()).Heartbeat)
	require.Len(t, n.beats, 1)
}

func TestCancelledTickIsAbandoned(t *testing.T) {
	w, f, n, clock := newTestWatcher(t, "sugar apple")
	ctx, cancel := context.WithCancel(context.Background())
	f.hook = func(int) { cancel() }

	clock.Advance(time.Hour)
	report := w.Tick(ctx)
	require.Empty(t, report.Found)
	require.Nil(t, report.Reset)
	require.False(t, report.Heartbeat)
	require.Empty(t, n.found)
}

func TestSleepDuration(t *testing.T) {
	interval := 60 * time.Second
	require.Equal(t, 60*time.Second, SleepDuration(interval, 0))
	require.Equal(t, 48*time.Second, SleepDuration(interval, 12*time.Second))
	require.Equal(t, time.Duration(0), SleepDuration(interval, interval))
	require.Equal(t, time.Duration(0), SleepDuration(interval, 95*time.Second))
}

func TestRunSurvivesFetchTimeoutAndStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{err: context.DeadlineExceeded}
	var waits []time.Duration
	w := New(f, &recordingNotifier{}, Config{
		Categories: defaultTable(),
		PollEvery:  time.Minute,
		After: func(d time.Duration) <-chan time.Time {
			waits = append(waits, d)
			if len(waits) == 3 {
				cancel()
			}
			ch := make(chan time.Time, 1)
			ch <- time.Now()
			return ch
		},
	})

	require.NoError(t, w.Run(ctx))
	require.GreaterOrEqual(t, f.calls, 3)
	for _, d := range waits {
		require.LessOrEqual(t, d, time.Minute)
		require.Greater(t, d, 59*time.Second)
	}
	require.Contains(t, w.Snapshot(time.Now()).LastFetchError, "deadline exceeded")
}

func TestRunRequiresFetcher(t *testing.T) {
	w := New(nil, nil, Config{})
	require.Error(t, w.Run(context.Background()))
}

func TestMatchKeepsTableOrder(t *testing.T) {
	hits := Match("bee egg, carrot, master sprinkler, loquat", defaultTable())
	var got []string
	for _, h := range hits {
		got = append(got, h.Category.Name+"/"+h.Item.Key)
	}
	require.Equal(t, []string{"seed/loquat", "seed/carrot", "gear/master sprinkler", "egg/bee egg"}, got)
}
