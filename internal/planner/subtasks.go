package planner

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"focusflow/internal/model"
)

var ErrSubtaskNotFound = errors.New("subtask not in task")

// Subtask operations share the task operations' contract at a smaller
// scale: optimistic slice mutation, then one SetSubtasks write carrying
// the parent's whole list. Subtask lists are short, so reordering always
// renumbers by index rather than keeping gapped keys.

func (p *Planner) AddSubtask(ctx context.Context, taskID, content string) (model.Subtask, error) {
	sub := model.Subtask{ID: "sub_" + uuid.NewString(), Content: content}

	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return model.Subtask{}, ErrNotFound
	}
	p.tasks[i].Subtasks = append(p.tasks[i].Subtasks, sub)
	snapshot := append([]model.Subtask(nil), p.tasks[i].Subtasks...)
	p.mu.Unlock()

	p.persistSubtasks(ctx, taskID, snapshot)
	return sub, nil
}

func (p *Planner) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (model.Subtask, error) {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return model.Subtask{}, ErrNotFound
	}
	j := indexSubtask(p.tasks[i].Subtasks, subtaskID)
	if j == -1 {
		p.mu.Unlock()
		return model.Subtask{}, ErrSubtaskNotFound
	}
	p.tasks[i].Subtasks[j].IsCompleted = !p.tasks[i].Subtasks[j].IsCompleted
	updated := p.tasks[i].Subtasks[j]
	snapshot := append([]model.Subtask(nil), p.tasks[i].Subtasks...)
	p.mu.Unlock()

	p.persistSubtasks(ctx, taskID, snapshot)
	return updated, nil
}

func (p *Planner) EditSubtask(ctx context.Context, taskID, subtaskID, content string) (model.Subtask, error) {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return model.Subtask{}, ErrNotFound
	}
	j := indexSubtask(p.tasks[i].Subtasks, subtaskID)
	if j == -1 {
		p.mu.Unlock()
		return model.Subtask{}, ErrSubtaskNotFound
	}
	p.tasks[i].Subtasks[j].Content = content
	updated := p.tasks[i].Subtasks[j]
	snapshot := append([]model.Subtask(nil), p.tasks[i].Subtasks...)
	p.mu.Unlock()

	p.persistSubtasks(ctx, taskID, snapshot)
	return updated, nil
}

func (p *Planner) RemoveSubtask(ctx context.Context, taskID, subtaskID string) error {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return ErrNotFound
	}
	j := indexSubtask(p.tasks[i].Subtasks, subtaskID)
	if j == -1 {
		p.mu.Unlock()
		return ErrSubtaskNotFound
	}
	subs := p.tasks[i].Subtasks
	p.tasks[i].Subtasks = append(subs[:j], subs[j+1:]...)
	if len(p.tasks[i].Subtasks) == 0 {
		p.tasks[i].Subtasks = nil
	}
	snapshot := append([]model.Subtask(nil), p.tasks[i].Subtasks...)
	p.mu.Unlock()

	p.persistSubtasks(ctx, taskID, snapshot)
	return nil
}

// ReorderSubtasks commits a full permutation of the parent's subtask
// list; position in the slice is the order.
func (p *Planner) ReorderSubtasks(ctx context.Context, taskID string, ids []string) error {
	p.mu.Lock()
	i := p.indexLocked(taskID)
	if i == -1 {
		p.mu.Unlock()
		return ErrNotFound
	}
	subs := p.tasks[i].Subtasks
	if len(ids) != len(subs) {
		p.mu.Unlock()
		return ErrOrderMismatch
	}
	byID := make(map[string]model.Subtask, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}
	next := make([]model.Subtask, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			p.mu.Unlock()
			return ErrOrderMismatch
		}
		next = append(next, s)
		delete(byID, id)
	}
	p.tasks[i].Subtasks = next
	snapshot := append([]model.Subtask(nil), next...)
	p.mu.Unlock()

	p.persistSubtasks(ctx, taskID, snapshot)
	return nil
}

func (p *Planner) persistSubtasks(ctx context.Context, taskID string, subs []model.Subtask) {
	if err := p.backend.SetSubtasks(ctx, taskID, subs); err != nil {
		p.logger.Error("persist subtasks failed", "task", taskID, "err", err)
	}
}

func (p *Planner) indexLocked(taskID string) int {
	for i, t := range p.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

func indexSubtask(subs []model.Subtask, id string) int {
	for i, s := range subs {
		if s.ID == id {
			return i
		}
	}
	return -1
}
