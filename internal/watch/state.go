package watch

import (
	"sort"
	"time"
)

// categoryState is the notification memory of one category and its reset clock.
type categoryState struct {
	category  Category
	notified  map[string]string // item key -> display name
	lastReset time.Time
}

func newCategoryState(c Category, now time.Time) *categoryState {
	return &categoryState{
		category:  c,
		notified:  make(map[string]string, len(c.Items)),
		lastReset: now,
	}
}

func (s *categoryState) seen(key string) bool {
	_, ok := s.notified[key]
	return ok
}

func (s *categoryState) remember(it Item) {
	s.notified[it.Key] = it.Name
}

func (s *categoryState) resetDue(now time.Time) bool {
	return now.Sub(s.lastReset) >= s.category.ResetInterval
}

func (s *categoryState) reset(now time.Time) {
	clear(s.notified)
	s.lastReset = now
}

func (s *categoryState) nextReset() time.Time {
	return s.lastReset.Add(s.category.ResetInterval)
}

// notifiedNames returns the display names currently remembered, sorted.
func (s *categoryState) notifiedNames() []string {
	names := make([]string, 0, len(s.notified))
	for _, n := range s.notified {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
