package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venkytv/stockwatch/internal/watch"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"run", "test-alert", "check"}, names)
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestPrintHits(t *testing.T) {
	var buf bytes.Buffer
	printHits(&buf, "https://example.com", []watch.Hit{
		{Category: watch.Category{Name: "seed", Emoji: "🌱"}, Item: watch.Item{Name: "Sugar Apple"}},
	})
	require.Contains(t, buf.String(), "CATEGORY")
	require.Contains(t, buf.String(), "Sugar Apple")

	buf.Reset()
	printHits(&buf, "https://example.com", nil)
	require.Equal(t, "No tracked items found on https://example.com\n", buf.String())
}

func TestCheckCommandListsPresentItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Bug Egg</p><p>Feijoa</p></body></html>`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "stockwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: "+srv.URL+"\n"), 0o644))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"check", "--config", path})
	require.NoError(t, root.Execute())

	require.Contains(t, out.String(), "Feijoa")
	require.Contains(t, out.String(), "Bug Egg")
}

func TestTestAlertPostsToWebhook(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "stockwatch.yaml")
	body := "webhook:\n  url: " + srv.URL + "\nlog:\n  console: false\n  file: " + filepath.Join(dir, "watch.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	root := newRootCommand()
	root.SetArgs([]string{"test-alert", "--config", path})
	require.NoError(t, root.Execute())
	require.Equal(t, 1, hits)
}
