package mongo

import (
	"context"
	"errors"

	"github.com/aionlabs/aion/a2a"
	clientsmongo "github.com/aionlabs/aion/features/task/mongo/clients/mongo"
	"github.com/aionlabs/aion/runtime/session"
)

// Store implements a2a.TaskStore by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(client clientsmongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// Save stores or replaces the task.
func (s *Store) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	return s.client.UpsertTask(ctx, *task)
}

// Load retrieves the task from storage. Returns a2a.ErrTaskNotFound when the
// task does not exist.
func (s *Store) Load(ctx context.Context, taskID string) (*a2a.Task, error) {
	return s.client.LoadTask(ctx, taskID)
}

// Delete removes the task. Deleting a missing task is a no-op.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	return s.client.DeleteTask(ctx, taskID)
}

// History implements session.Store by delegating to the Mongo client. It
// shares the client (and thus the Mongo connection) with Store.
type History struct {
	client clientsmongo.Client
}

// NewHistory builds a History using the provided client.
func NewHistory(client clientsmongo.Client) (*History, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &History{client: client}, nil
}

// AppendEvent appends a settled event to the context's history.
func (h *History) AppendEvent(ctx context.Context, contextID string, ev session.Event) error {
	return h.client.AppendEvent(ctx, contextID, ev)
}

// History returns the ordered event history for the context.
func (h *History) History(ctx context.Context, contextID string) ([]session.Event, error) {
	return h.client.ListEvents(ctx, contextID)
}
