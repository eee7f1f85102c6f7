package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/venkytv/stockwatch/internal/watch"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		statusURL string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show the notification memory and clocks of a running stockwatch",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := fetchStatus(ctx, statusURL)
			if err != nil {
				return fmt.Errorf("fetch status: %w", err)
			}
			printStatus(resp, cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&statusURL, "url", envDefault("STATUS_URL", "http://127.0.0.1:8080/"), "Status endpoint URL")
	cmd.Flags().DurationVar(&timeout, "timeout", envDuration("STATUS_TIMEOUT", 3*time.Second), "HTTP request timeout")
	return cmd
}

func fetchStatus(ctx context.Context, url string) (watch.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return watch.Status{}, fmt.Errorf("build request: %w", err)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return watch.Status{}, fmt.Errorf("request status: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return watch.Status{}, fmt.Errorf("unexpected status %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	var status watch.Status
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return watch.Status{}, fmt.Errorf("decode response: %w", err)
	}
	return status, nil
}

func printStatus(resp watch.Status, w io.Writer) {
	if resp.ObservedAt.IsZero() {
		resp.ObservedAt = time.Now()
	}
	colorize := shouldColor(w)

	fmt.Fprintf(w, "Observed at: %s\n", resp.ObservedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Running since: %s\n", resp.StartedAt.Format(time.RFC3339))
	if resp.LastTick != nil {
		fmt.Fprintf(w, "Last check: %s\n", resp.LastTick.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Last check: -")
	}
	if resp.LastFetchError != "" {
		fmt.Fprintf(w, "Last fetch: %s\n", applyColor("FAILED: "+resp.LastFetchError, colorize, 31))
	}
	fmt.Fprintf(w, "Heartbeat: last %s, next in %s\n", resp.LastHeartbeat.Format(time.RFC3339), resp.NextHeartbeatIn)

	if len(resp.Categories) == 0 {
		fmt.Fprintln(w, "No categories tracked.")
		return
	}
	fmt.Fprintln(w)

	alerted := 0
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTRACKED\tRESET EVERY\tNEXT RESET\tNOTIFIED")
	for _, c := range resp.Categories {
		alerted += len(c.Notified)
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			strings.TrimSpace(c.Emoji+" "+c.Category), c.Tracked, c.ResetInterval, c.NextResetIn, summarizeNotified(c.Notified))
	}
	_ = tw.Flush()

	out := buf.String()
	if colorize {
		out = colorizeNotified(out)
	}
	fmt.Fprint(w, out)
	fmt.Fprintf(w, "\n%d item(s) alerted in the current windows across %d categor(ies)\n", alerted, len(resp.Categories))
}

func summarizeNotified(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func shouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func applyColor(s string, colorize bool, code int) string {
	if !colorize {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

// colorizeNotified highlights rows whose window already holds alerts.
func colorizeNotified(out string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "CATEGORY") || strings.HasSuffix(line, " -") {
			continue
		}
		lines[i] = applyColor(line, true, 32)
	}
	return strings.Join(lines, "\n")
}
