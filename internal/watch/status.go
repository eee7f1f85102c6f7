package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Status is the JSON document served on the status address.
type Status struct {
	ObservedAt      time.Time        `json:"observed_at"`
	StartedAt       time.Time        `json:"started_at"`
	LastTick        *time.Time       `json:"last_tick,omitempty"`
	LastFetchError  string           `json:"last_fetch_error,omitempty"`
	LastHeartbeat   time.Time        `json:"last_heartbeat"`
	NextHeartbeatIn string           `json:"next_heartbeat_in"`
	Categories      []CategoryStatus `json:"categories"`
}

type CategoryStatus struct {
	Category      string    `json:"category"`
	Emoji         string    `json:"emoji,omitempty"`
	Tracked       int       `json:"tracked"`
	Notified      []string  `json:"notified"`
	LastReset     time.Time `json:"last_reset"`
	ResetInterval string    `json:"reset_interval"`
	NextResetIn   string    `json:"next_reset_in"`
}

// Snapshot captures the watcher state as of now.
func (w *Watcher) Snapshot(now time.Time) Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		ObservedAt:      now,
		StartedAt:       w.startedAt,
		LastFetchError:  w.lastFetchErr,
		LastHeartbeat:   w.lastHeartbeat,
		NextHeartbeatIn: until(now, w.lastHeartbeat.Add(w.cfg.HeartbeatEvery)),
		Categories:      make([]CategoryStatus, 0, len(w.state)),
	}
	if !w.lastTick.IsZero() {
		last := w.lastTick
		st.LastTick = &last
	}
	for _, s := range w.state {
		st.Categories = append(st.Categories, CategoryStatus{
			Category:      s.category.Name,
			Emoji:         s.category.Emoji,
			Tracked:       len(s.category.Items),
			Notified:      s.notifiedNames(),
			LastReset:     s.lastReset,
			ResetInterval: s.category.ResetInterval.String(),
			NextResetIn:   until(now, s.nextReset()),
		})
	}
	return st
}

func until(now, at time.Time) string {
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}

func (w *Watcher) statusHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(w.Snapshot(w.cfg.Now())); err != nil {
			w.logger.Error().Err(err).Msg("encode status failed")
		}
	})
}

// serveStatus binds the status address and serves until ctx is done.
func (w *Watcher) serveStatus(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.cfg.StatusAddr)
	if err != nil {
		return fmt.Errorf("listen on status address: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", w.statusHandler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error().Err(err).Msg("status server stopped")
		}
	}()
	w.logger.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
	return nil
}
