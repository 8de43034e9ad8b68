package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/session"
)

// fakeClient implements clientsmongo.Client in memory for store tests.
type fakeClient struct {
	tasks  map[string]a2a.Task
	events map[string][]session.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		tasks:  make(map[string]a2a.Task),
		events: make(map[string][]session.Event),
	}
}

func (c *fakeClient) Name() string                   { return "fake" }
func (c *fakeClient) Ping(ctx context.Context) error { return nil }

func (c *fakeClient) UpsertTask(ctx context.Context, task a2a.Task) error {
	c.tasks[task.ID] = task
	return nil
}

func (c *fakeClient) LoadTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	task, ok := c.tasks[taskID]
	if !ok {
		return nil, a2a.ErrTaskNotFound
	}
	out := task
	return &out, nil
}

func (c *fakeClient) DeleteTask(ctx context.Context, taskID string) error {
	delete(c.tasks, taskID)
	return nil
}

func (c *fakeClient) AppendEvent(ctx context.Context, contextID string, ev session.Event) error {
	c.events[contextID] = append(c.events[contextID], ev)
	return nil
}

func (c *fakeClient) ListEvents(ctx context.Context, contextID string) ([]session.Event, error) {
	return c.events[contextID], nil
}

func TestNewStoreRequiresClient(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
	_, err = NewHistory(nil)
	require.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	cli := newFakeClient()
	store, err := NewStore(cli)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, "t1")
	require.ErrorIs(t, err, a2a.ErrTaskNotFound)

	task := &a2a.Task{ID: "t1", ContextID: "c1", Status: a2a.NewStatus(a2a.TaskStateWorking, nil)}
	require.NoError(t, store.Save(ctx, task))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "c1", loaded.ContextID)
	require.Equal(t, a2a.TaskStateWorking, loaded.Status.State)

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Load(ctx, "t1")
	require.ErrorIs(t, err, a2a.ErrTaskNotFound)
}

func TestStoreSaveRequiresTask(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), nil))
}

func TestHistoryDelegates(t *testing.T) {
	cli := newFakeClient()
	history, err := NewHistory(cli)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, history.AppendEvent(ctx, "c1", session.Event{ID: "e1", Kind: "message"}))
	require.NoError(t, history.AppendEvent(ctx, "c1", session.Event{ID: "e2", Kind: "tool_calls"}))

	events, err := history.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "e1", events[0].ID)
}
