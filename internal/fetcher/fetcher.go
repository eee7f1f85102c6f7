// Package fetcher downloads the stock page and reduces it to the lower-cased
// visible text the matcher searches.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	defaultUserAgent = "Mozilla/5.0"
	defaultTimeout   = 10 * time.Second
)

// nonVisibleSelectors lists elements whose text never renders.
const nonVisibleSelectors = "script, style, noscript, template"

// StatusError reports a non-2xx response from the stock page.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %s", e.URL, e.Status)
}

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Page fetches one fixed URL.
type Page struct {
	url    string
	client *resty.Client
}

func New(cfg Config) *Page {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")
	return &Page{url: cfg.URL, client: client}
}

// Fetch performs a single GET and returns the page's visible text, lower-cased.
func (p *Page) Fetch(ctx context.Context) (string, error) {
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", p.url, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return "", &StatusError{URL: p.url, Code: code, Status: resp.Status()}
	}
	return VisibleText(resp.Body())
}

// VisibleText parses an HTML document and returns its text content lower-cased.
func VisibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(nonVisibleSelectors).Remove()
	return strings.ToLower(doc.Text()), nil
}
