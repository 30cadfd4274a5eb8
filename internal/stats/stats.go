// Package stats derives per-day completion counts used for the calendar
// view's completion indicators.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"focusflow/internal/model"
	"focusflow/internal/store"
)

// MonthLayout keys the cache's eviction bookkeeping.
const MonthLayout = "2006-01"

// DefaultRetainMonths bounds the cache to the most recently visited
// months. Merging without eviction avoids flicker when paging between
// adjacent months but would otherwise grow without bound.
const DefaultRetainMonths = 12

// Cache is a sparse per-date map of derived DayStatus entries, bounded by
// a month-granularity LRU. Entries for a date are superseded whenever that
// date's month is re-fetched, and adjusted in place on optimistic edits.
type Cache struct {
	mu     sync.Mutex
	days   map[string]model.DayStatus
	recent []string // months, most recently fetched last
	retain int
}

func NewCache(retainMonths int) *Cache {
	if retainMonths <= 0 {
		retainMonths = DefaultRetainMonths
	}
	return &Cache{
		days:   map[string]model.DayStatus{},
		retain: retainMonths,
	}
}

// FetchMonth queries the backend for the month's full date range, derives
// {total, completed} per date and merges the result over the cache.
// Dates outside the fetched month keep their cached entries.
func (c *Cache) FetchMonth(ctx context.Context, backend store.Backend, month time.Time) error {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	tasks, err := backend.FetchForRange(ctx, start.Format(model.DateLayout), end.Format(model.DateLayout))
	if err != nil {
		return fmt.Errorf("fetch month %s: %w", start.Format(MonthLayout), err)
	}

	fresh := map[string]model.DayStatus{}
	for _, t := range tasks {
		st := fresh[t.Date]
		st.Total++
		if t.IsCompleted {
			st.Completed++
		}
		fresh[t.Date] = st
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-fetching a month replaces all of its entries, including dates
	// whose tasks have since been deleted.
	monthKey := start.Format(MonthLayout)
	for date := range c.days {
		if monthOf(date) == monthKey {
			delete(c.days, date)
		}
	}
	for date, st := range fresh {
		c.days[date] = st
	}
	c.touchLocked(monthKey)
	return nil
}

// Get returns the cached status for a date, if any.
func (c *Cache) Get(date string) (model.DayStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.days[date]
	return st, ok
}

// Month returns a copy of all cached entries belonging to one month.
func (c *Cache) Month(month time.Time) map[string]model.DayStatus {
	key := month.Format(MonthLayout)

	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string]model.DayStatus{}
	for date, st := range c.days {
		if monthOf(date) == key {
			out[date] = st
		}
	}
	return out
}

// AdjustAdd bumps the day's total after an optimistic task creation,
// creating the entry when the day was previously empty.
func (c *Cache) AdjustAdd(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.days[date]
	st.Total++
	c.days[date] = st
}

// AdjustToggle moves the day's completed count after an optimistic toggle.
// A date the cache has never seen is left alone; the next month fetch
// derives it from scratch.
func (c *Cache) AdjustToggle(date string, nowCompleted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.days[date]
	if !ok {
		return
	}
	if nowCompleted {
		st.Completed++
	} else if st.Completed > 0 {
		st.Completed--
	}
	c.days[date] = st
}

// AdjustRemove shrinks the day's counts after an optimistic delete.
func (c *Cache) AdjustRemove(date string, wasCompleted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.days[date]
	if !ok {
		return
	}
	if st.Total > 0 {
		st.Total--
	}
	if wasCompleted && st.Completed > 0 {
		st.Completed--
	}
	if st.Total == 0 {
		delete(c.days, date)
		return
	}
	c.days[date] = st
}

func (c *Cache) touchLocked(monthKey string) {
	for i, m := range c.recent {
		if m == monthKey {
			c.recent = append(c.recent[:i], c.recent[i+1:]...)
			break
		}
	}
	c.recent = append(c.recent, monthKey)

	for len(c.recent) > c.retain {
		evict := c.recent[0]
		c.recent = c.recent[1:]
		for date := range c.days {
			if monthOf(date) == evict {
				delete(c.days, date)
			}
		}
	}
}

func monthOf(date string) string {
	if len(date) < len("2006-01") {
		return date
	}
	return date[:len("2006-01")]
}
