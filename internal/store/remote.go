package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"focusflow/internal/model"
	"focusflow/internal/ordering"
)

// Remote is a client for the hosted document store. Tasks live as
// documents under users/{uid}/tasks/{taskId}; order rewrites go through a
// single batch endpoint so the store can apply them as one write.
type Remote struct {
	base   string
	client *http.Client
	userID string
	now    func() time.Time
}

func NewRemote(baseURL string) (*Remote, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remote store base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("remote store base url: %w", err)
	}
	return &Remote{
		base:   baseURL,
		client: &http.Client{Timeout: 15 * time.Second},
		userID: "default",
		now:    time.Now,
	}, nil
}

// SetClock overrides the wall clock. Test hook.
func (r *Remote) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Remote) ForUser(userID string) *Remote {
	scoped := *r
	scoped.userID = userID
	return &scoped
}

func (r *Remote) tasksURL() string {
	return fmt.Sprintf("%s/users/%s/tasks", r.base, url.PathEscape(r.userID))
}

func (r *Remote) taskURL(taskID string) string {
	return r.tasksURL() + "/" + url.PathEscape(taskID)
}

func (r *Remote) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return fmt.Errorf("document store: %s: %s", res.Status, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("document store: decode response: %w", err)
		}
	}
	return nil
}

func (r *Remote) FetchForDate(ctx context.Context, date string) ([]model.Task, error) {
	var tasks []model.Task
	u := r.tasksURL() + "?date=" + url.QueryEscape(date)
	if err := r.do(ctx, http.MethodGet, u, nil, &tasks); err != nil {
		return nil, err
	}
	ordering.Sort(tasks)
	return tasks, nil
}

func (r *Remote) FetchForRange(ctx context.Context, start, end string) ([]model.Task, error) {
	var tasks []model.Task
	u := fmt.Sprintf("%s?start=%s&end=%s", r.tasksURL(), url.QueryEscape(start), url.QueryEscape(end))
	if err := r.do(ctx, http.MethodGet, u, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *Remote) Create(ctx context.Context, content, date string) (model.Task, error) {
	bucket, err := r.FetchForDate(ctx, date)
	if err != nil {
		return model.Task{}, fmt.Errorf("compute insertion order: %w", err)
	}
	order := ordering.NextAppend(bucket)

	// The store assigns the document id; everything else travels with the
	// request.
	doc := model.Task{
		Content:   content,
		Date:      date,
		UserID:    r.userID,
		CreatedAt: r.now().UnixMilli(),
		Order:     &order,
	}
	var created model.Task
	if err := r.do(ctx, http.MethodPost, r.tasksURL(), doc, &created); err != nil {
		return model.Task{}, err
	}
	return created, nil
}

func (r *Remote) SetCompleted(ctx context.Context, taskID string, completed bool) error {
	return r.do(ctx, http.MethodPatch, r.taskURL(taskID), map[string]any{"isCompleted": completed}, nil)
}

func (r *Remote) SetContent(ctx context.Context, taskID, content string) error {
	return r.do(ctx, http.MethodPatch, r.taskURL(taskID), map[string]any{"content": content}, nil)
}

func (r *Remote) SetSubtasks(ctx context.Context, taskID string, subtasks []model.Subtask) error {
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	return r.do(ctx, http.MethodPatch, r.taskURL(taskID), map[string]any{"subtasks": subtasks}, nil)
}

func (r *Remote) Delete(ctx context.Context, taskID string) error {
	return r.do(ctx, http.MethodDelete, r.taskURL(taskID), nil, nil)
}

func (r *Remote) SetOrders(ctx context.Context, updates []OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	body := map[string]any{"updates": updates}
	return r.do(ctx, http.MethodPost, r.tasksURL()+":batchWrite", body, nil)
}
