// Package store persists tasks behind a single Backend contract with two
// implementations: a local-only file store for guest sessions and an HTTP
// document-store client for signed-in users.
package store

import (
	"context"
	"errors"

	"focusflow/internal/identity"
	"focusflow/internal/model"
)

var ErrNotFound = errors.New("task not found")

// OrderUpdate is one entry of a batched order rewrite.
type OrderUpdate struct {
	TaskID string `json:"id"`
	Order  int64  `json:"order"`
}

// Backend is the uniform persistence contract. Every implementation is
// already scoped to one user; reads that fail return an error, never a
// silently-empty result.
type Backend interface {
	// FetchForDate returns the day's bucket sorted ascending by effective
	// order key (createdAt for records predating the order field).
	FetchForDate(ctx context.Context, date string) ([]model.Task, error)
	// FetchForRange returns all tasks with start <= date <= end, unordered.
	FetchForRange(ctx context.Context, start, end string) ([]model.Task, error)
	// Create computes the insertion order key, persists and returns the
	// stored record including its assigned id.
	Create(ctx context.Context, content, date string) (model.Task, error)
	SetCompleted(ctx context.Context, taskID string, completed bool) error
	SetContent(ctx context.Context, taskID, content string) error
	SetSubtasks(ctx context.Context, taskID string, subtasks []model.Subtask) error
	Delete(ctx context.Context, taskID string) error
	// SetOrders persists a batch of order keys as one unit: a single
	// whole-file rewrite locally, a single batch request remotely.
	SetOrders(ctx context.Context, updates []OrderUpdate) error
}

// Select picks the backend for a session once, at session start. The guest
// sentinel routes to the local store; everyone else gets the remote store.
func Select(local *Local, remote *Remote, user identity.User) Backend {
	if user.IsGuest() {
		return local.ForUser(identity.GuestUID)
	}
	return remote.ForUser(user.UID)
}
