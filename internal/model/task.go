package model

// DateLayout is the canonical day-bucket key format. Zero-padded so that
// lexicographic comparison on date strings matches chronological order.
const DateLayout = "2006-01-02"

// Task is one entry in a user's daily list. Tasks are partitioned into
// buckets by (UserID, Date); Date never changes after creation.
type Task struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	IsCompleted bool      `json:"isCompleted"`
	Date        string    `json:"date"`
	UserID      string    `json:"userId"`
	CreatedAt   int64     `json:"createdAt"` // epoch milliseconds
	Order       *int64    `json:"order,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

// OrderKey returns the effective sort key for the task. Records written
// before the order field existed sort by their creation timestamp; they are
// not backfilled unless explicitly rewritten.
func (t Task) OrderKey() int64 {
	if t.Order != nil {
		return *t.Order
	}
	return t.CreatedAt
}

// Subtask is a nested checklist item owned exclusively by its parent task.
// Position in the parent's slice is the subtask's order.
type Subtask struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	IsCompleted bool   `json:"isCompleted"`
}

// DayStatus is the derived {total, completed} pair for one calendar date.
// It is never stored; it is recomputed from tasks and cached.
type DayStatus struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}
