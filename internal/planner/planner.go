// Package planner holds the task list for the session's selected day and
// applies every user intent to it: optimistic in-memory mutation first,
// then best-effort persistence through the storage backend.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"focusflow/internal/model"
	"focusflow/internal/ordering"
	"focusflow/internal/stats"
	"focusflow/internal/store"
)

// DefaultDailyLimit is the Ivy Lee cap: at most five tasks per day. The
// cap is enforced here, in the store, not left to caller discipline.
const DefaultDailyLimit = 5

var (
	ErrDailyLimit    = errors.New("daily task limit reached")
	ErrNotFound      = errors.New("task not in the selected day")
	ErrOrderMismatch = errors.New("reorder list does not match the selected day")
)

// Planner is the aggregate store for one (user, selected date) pair.
// In-memory state is the source of truth for what the caller sees; write
// failures are logged and never rolled back, so the list can drift from
// persisted truth until the next full re-fetch.
type Planner struct {
	mu      sync.Mutex
	backend store.Backend
	stats   *stats.Cache
	logger  *log.Logger
	limit   int

	date  string
	tasks []model.Task
	// pending counts adds that passed the cap check but whose backend
	// create has not resolved yet. Reserving the slot up front keeps two
	// in-flight adds from both landing under the cap.
	pending int
}

func New(backend store.Backend, statsCache *stats.Cache, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.Default()
	}
	return &Planner{
		backend: backend,
		stats:   statsCache,
		logger:  logger,
		limit:   DefaultDailyLimit,
	}
}

// SetLimit overrides the daily cap. Values below one keep the default.
func (p *Planner) SetLimit(limit int) {
	if limit >= 1 {
		p.limit = limit
	}
}

// SetDate switches the selected day, re-fetching and replacing the whole
// list. A fetch failure leaves the previous selection intact and is
// surfaced to the caller, distinct from a legitimately empty day.
func (p *Planner) SetDate(ctx context.Context, date string) error {
	fetched, err := p.backend.FetchForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("fetch tasks for %s: %w", date, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.date = date
	p.tasks = fetched
	return nil
}

// EnsureDate is SetDate that skips the re-fetch when the day is already
// selected.
func (p *Planner) EnsureDate(ctx context.Context, date string) error {
	p.mu.Lock()
	current := p.date
	p.mu.Unlock()
	if current == date {
		return nil
	}
	return p.SetDate(ctx, date)
}

// Refresh re-fetches the selected day.
func (p *Planner) Refresh(ctx context.Context) error {
	p.mu.Lock()
	date := p.date
	p.mu.Unlock()
	if date == "" {
		return nil
	}
	return p.SetDate(ctx, date)
}

func (p *Planner) Date() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.date
}

// Tasks returns a copy of the selected day's list in display order.
func (p *Planner) Tasks() []model.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Task(nil), p.tasks...)
}

// Add creates a task at the end of the day's list. The 6th add of a day
// is rejected before anything is persisted.
func (p *Planner) Add(ctx context.Context, content string) (model.Task, error) {
	p.mu.Lock()
	if len(p.tasks)+p.pending >= p.limit {
		p.mu.Unlock()
		return model.Task{}, ErrDailyLimit
	}
	p.pending++
	date := p.date
	p.mu.Unlock()

	created, err := p.backend.Create(ctx, content, date)

	p.mu.Lock()
	p.pending--
	if err != nil {
		p.mu.Unlock()
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	p.tasks = append(p.tasks, created)
	p.mu.Unlock()

	if p.stats != nil {
		p.stats.AdjustAdd(date)
	}
	return created, nil
}

// Toggle flips a task's completion state in place and adjusts the day's
// cached completed count without a re-fetch.
func (p *Planner) Toggle(ctx context.Context, taskID string) (model.Task, error) {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	p.tasks[i].IsCompleted = !p.tasks[i].IsCompleted
	updated := p.tasks[i]
	date := p.date
	p.mu.Unlock()

	if p.stats != nil {
		p.stats.AdjustToggle(date, updated.IsCompleted)
	}
	if err := p.backend.SetCompleted(ctx, taskID, updated.IsCompleted); err != nil {
		p.logger.Error("persist toggle failed", "task", taskID, "err", err)
	}
	return updated, nil
}

// Remove deletes a task from the day and shrinks the cached day counts.
func (p *Planner) Remove(ctx context.Context, taskID string) error {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return ErrNotFound
	}
	removed := p.tasks[i]
	p.tasks = append(p.tasks[:i], p.tasks[i+1:]...)
	date := p.date
	p.mu.Unlock()

	if p.stats != nil {
		p.stats.AdjustRemove(date, removed.IsCompleted)
	}
	if err := p.backend.Delete(ctx, taskID); err != nil {
		p.logger.Error("persist delete failed", "task", taskID, "err", err)
	}
	return nil
}

// EditContent rewrites a task's display text.
func (p *Planner) EditContent(ctx context.Context, taskID, content string) (model.Task, error) {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	p.tasks[i].Content = content
	updated := p.tasks[i]
	p.mu.Unlock()

	if err := p.backend.SetContent(ctx, taskID, content); err != nil {
		p.logger.Error("persist edit failed", "task", taskID, "err", err)
	}
	return updated, nil
}

// Reorder commits a full drag-and-drop permutation of the day's list. The
// ids must be exactly the current resident set; every task is renumbered
// to index*gap and the batch is persisted as one unit.
func (p *Planner) Reorder(ctx context.Context, ids []string) error {
	p.mu.Lock()
	if len(ids) != len(p.tasks) {
		p.mu.Unlock()
		return ErrOrderMismatch
	}
	byID := make(map[string]model.Task, len(p.tasks))
	for _, t := range p.tasks {
		byID[t.ID] = t
	}
	next := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			p.mu.Unlock()
			return ErrOrderMismatch
		}
		next = append(next, t)
		delete(byID, id)
	}
	ordering.Renumber(next)
	p.tasks = next

	updates := make([]store.OrderUpdate, len(next))
	for i, t := range next {
		updates[i] = store.OrderUpdate{TaskID: t.ID, Order: *t.Order}
	}
	p.mu.Unlock()

	if err := p.backend.SetOrders(ctx, updates); err != nil {
		p.logger.Error("persist reorder failed", "err", err)
	}
	return nil
}
