package watch

import (
	"strings"
	"time"

	"github.com/venkytv/stockwatch/internal/config"
)

// Category is one row group of the tracked table.
type Category struct {
	Name          string
	Emoji         string
	ResetInterval time.Duration
	Items         []Item
}

// Item is a tracked item with its match key and resolved webhook target.
type Item struct {
	Name   string
	Key    string
	Target string
}

// Hit is a tracked item whose key occurs in the page text.
type Hit struct {
	Category Category
	Item     Item
}

// TableFromConfig flattens the configured categories into the tracked table,
// resolving each item's webhook target.
func TableFromConfig(cfg config.Config) []Category {
	table := make([]Category, 0, len(cfg.Categories))
	for _, cc := range cfg.Categories {
		cat := Category{
			Name:          cc.Name,
			Emoji:         cc.Emoji,
			ResetInterval: cc.ResetInterval,
			Items:         make([]Item, 0, len(cc.Items)),
		}
		for _, it := range cc.Items {
			cat.Items = append(cat.Items, Item{
				Name:   it.Name,
				Key:    it.Key(),
				Target: cfg.ItemTarget(cc, it),
			})
		}
		table = append(table, cat)
	}
	return table
}

// Match returns, in table order, every item whose key is a substring of text.
// text is expected to be lower-cased already. Matching is plain substring
// search, so "apple" also matches inside "sugar apple".
func Match(text string, table []Category) []Hit {
	var hits []Hit
	for _, cat := range table {
		for _, it := range cat.Items {
			if it.Key != "" && strings.Contains(text, it.Key) {
				hits = append(hits, Hit{Category: cat, Item: it})
			}
		}
	}
	return hits
}
