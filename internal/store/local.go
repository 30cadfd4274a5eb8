package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"focusflow/internal/model"
	"focusflow/internal/ordering"
)

const localFileName = "guest_tasks.json"

// localState is the entire task set, serialized as one array and rewritten
// whole on every mutation. Matches the single-key browser-storage layout
// the guest mode replaces.
type localState struct {
	mu    sync.Mutex
	path  string
	tasks []model.Task
	now   func() time.Time
}

// Local is a user-scoped view over the shared local file. In practice the
// only user is the guest sentinel, but the scoping mirrors the remote
// store so both sides satisfy Backend identically.
type Local struct {
	state  *localState
	userID string
}

func NewLocal(dataDir string) (*Local, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	st := &localState{
		path: filepath.Join(dataDir, localFileName),
		now:  time.Now,
	}
	if err := st.load(); err != nil {
		return nil, err
	}
	return &Local{state: st, userID: "default"}, nil
}

// SetClock overrides the wall clock. Test hook.
func (l *Local) SetClock(now func() time.Time) {
	l.state.now = now
}

func (l *Local) ForUser(userID string) *Local {
	return &Local{state: l.state, userID: userID}
}

func (s *localState) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.tasks = nil
			return nil
		}
		return err
	}
	var loaded []model.Task
	if err := json.Unmarshal(b, &loaded); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.tasks = loaded
	return nil
}

func (s *localState) saveLocked() error {
	b, err := json.MarshalIndent(s.tasks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (l *Local) bucketLocked(date string) []model.Task {
	var out []model.Task
	for _, t := range l.state.tasks {
		if t.UserID == l.userID && t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

func (l *Local) indexLocked(taskID string) int {
	for i, t := range l.state.tasks {
		if t.UserID == l.userID && t.ID == taskID {
			return i
		}
	}
	return -1
}

func (l *Local) FetchForDate(ctx context.Context, date string) ([]model.Task, error) {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	out := l.bucketLocked(date)
	ordering.Sort(out)
	return out, nil
}

func (l *Local) FetchForRange(ctx context.Context, start, end string) ([]model.Task, error) {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	var out []model.Task
	for _, t := range l.state.tasks {
		if t.UserID == l.userID && t.Date >= start && t.Date <= end {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *Local) Create(ctx context.Context, content, date string) (model.Task, error) {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	order := ordering.NextAppend(l.bucketLocked(date))
	t := model.Task{
		ID:        l.nextIDLocked(),
		Content:   content,
		Date:      date,
		UserID:    l.userID,
		CreatedAt: l.state.now().UnixMilli(),
		Order:     &order,
	}
	l.state.tasks = append(l.state.tasks, t)
	if err := l.state.saveLocked(); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// nextIDLocked mints a "guest_<epoch-millis>" id, bumping the millisecond
// component past any collision from two creates in the same tick.
func (l *Local) nextIDLocked() string {
	ms := l.state.now().UnixMilli()
	for {
		id := fmt.Sprintf("guest_%d", ms)
		if l.indexLocked(id) == -1 {
			return id
		}
		ms++
	}
}

func (l *Local) SetCompleted(ctx context.Context, taskID string, completed bool) error {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	i := l.indexLocked(taskID)
	if i == -1 {
		return ErrNotFound
	}
	l.state.tasks[i].IsCompleted = completed
	return l.state.saveLocked()
}

func (l *Local) SetContent(ctx context.Context, taskID, content string) error {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	i := l.indexLocked(taskID)
	if i == -1 {
		return ErrNotFound
	}
	l.state.tasks[i].Content = content
	return l.state.saveLocked()
}

func (l *Local) SetSubtasks(ctx context.Context, taskID string, subtasks []model.Subtask) error {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	i := l.indexLocked(taskID)
	if i == -1 {
		return ErrNotFound
	}
	if len(subtasks) == 0 {
		l.state.tasks[i].Subtasks = nil
	} else {
		l.state.tasks[i].Subtasks = append([]model.Subtask(nil), subtasks...)
	}
	return l.state.saveLocked()
}

func (l *Local) Delete(ctx context.Context, taskID string) error {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	i := l.indexLocked(taskID)
	if i == -1 {
		return ErrNotFound
	}
	l.state.tasks = append(l.state.tasks[:i], l.state.tasks[i+1:]...)
	return l.state.saveLocked()
}

func (l *Local) SetOrders(ctx context.Context, updates []OrderUpdate) error {
	_ = ctx
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	// All updates land in one rewrite; a missing id fails the whole batch
	// before anything is written.
	byID := make(map[string]int64, len(updates))
	for _, u := range updates {
		byID[u.TaskID] = u.Order
	}
	for _, u := range updates {
		if l.indexLocked(u.TaskID) == -1 {
			return fmt.Errorf("set orders: %w: %s", ErrNotFound, u.TaskID)
		}
	}
	for i, t := range l.state.tasks {
		if t.UserID != l.userID {
			continue
		}
		if order, ok := byID[t.ID]; ok {
			o := order
			l.state.tasks[i].Order = &o
		}
	}
	return l.state.saveLocked()
}
