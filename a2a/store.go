package a2a

import (
	"context"
	"errors"
	"sync"
)

// ErrTaskNotFound indicates the requested task does not exist in the store.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore abstracts task state persistence for pluggability. The default
// implementation is in-memory and process-bound; durable deployments use
// features/task/mongo.
type TaskStore interface {
	// Save stores or replaces the task.
	Save(ctx context.Context, task *Task) error
	// Load returns the task with the given id.
	// Returns ErrTaskNotFound when missing.
	Load(ctx context.Context, taskID string) (*Task, error)
	// Delete removes the task. Deleting a missing task is a no-op.
	Delete(ctx context.Context, taskID string) error
}

// MemoryTaskStore is the default TaskStore implementation. It is safe for
// concurrent use by multiple goroutines and keeps deep copies so callers
// cannot mutate stored state.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryTaskStore returns an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*Task)}
}

// Save implements TaskStore.
func (s *MemoryTaskStore) Save(_ context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return errors.New("task id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// Load implements TaskStore.
func (s *MemoryTaskStore) Load(_ context.Context, taskID string) (*Task, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// Delete implements TaskStore.
func (s *MemoryTaskStore) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func cloneTask(in *Task) *Task {
	out := *in
	if len(in.History) > 0 {
		out.History = append([]Message(nil), in.History...)
	}
	if len(in.Artifacts) > 0 {
		out.Artifacts = append([]Artifact(nil), in.Artifacts...)
	}
	if len(in.Metadata) > 0 {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
