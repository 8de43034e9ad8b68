package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/session"
)

type fakeCollection struct {
	findOne   func(filter any) singleResult
	updateOne func(filter, update any) (*mongodriver.UpdateResult, error)
	insertOne func(doc any) (*mongodriver.InsertOneResult, error)
	deleteOne func(filter any) (*mongodriver.DeleteResult, error)
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return c.findOne(filter)
}

func (c *fakeCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	return nil, mongodriver.ErrNilCursor
}

func (c *fakeCollection) UpdateOne(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.updateOne(filter, update)
}

func (c *fakeCollection) InsertOne(ctx context.Context, doc any,
	opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.insertOne(doc)
}

func (c *fakeCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.deleteOne(filter)
}

func (c *fakeCollection) Indexes() indexView { return fakeIndexView{} }

type fakeIndexView struct{}

func (fakeIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	return "", nil
}

type fakeResult struct {
	decode func(val any) error
}

func (r fakeResult) Decode(val any) error { return r.decode(val) }

func newTestClient(t *testing.T, tasks, events collection) *client {
	t.Helper()
	if tasks == nil {
		tasks = &fakeCollection{}
	}
	if events == nil {
		events = &fakeCollection{}
	}
	cli, err := newClientWithCollections(nil, tasks, events, time.Second)
	require.NoError(t, err)
	return cli
}

func TestUpsertTaskRequiresID(t *testing.T) {
	cli := newTestClient(t, nil, nil)
	require.Error(t, cli.UpsertTask(context.Background(), a2a.Task{}))
}

func TestUpsertTaskWrites(t *testing.T) {
	var gotFilter, gotUpdate any
	tasks := &fakeCollection{updateOne: func(filter, update any) (*mongodriver.UpdateResult, error) {
		gotFilter, gotUpdate = filter, update
		return &mongodriver.UpdateResult{}, nil
	}}
	cli := newTestClient(t, tasks, nil)

	task := a2a.Task{ID: "t1", ContextID: "c1", Status: a2a.NewStatus(a2a.TaskStateWorking, nil)}
	require.NoError(t, cli.UpsertTask(context.Background(), task))
	require.NotNil(t, gotFilter)
	require.NotNil(t, gotUpdate)
}

func TestLoadTaskMapsMissingToNotFound(t *testing.T) {
	tasks := &fakeCollection{findOne: func(filter any) singleResult {
		return fakeResult{decode: func(val any) error { return mongodriver.ErrNoDocuments }}
	}}
	cli := newTestClient(t, tasks, nil)

	_, err := cli.LoadTask(context.Background(), "missing")
	require.ErrorIs(t, err, a2a.ErrTaskNotFound)
}

func TestLoadTaskDecodesDocument(t *testing.T) {
	tasks := &fakeCollection{findOne: func(filter any) singleResult {
		return fakeResult{decode: func(val any) error {
			doc, ok := val.(*taskDocument)
			require.True(t, ok)
			*doc = taskDocument{
				TaskID:    "t1",
				ContextID: "c1",
				Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
				History:   []a2a.Message{{MessageID: "m1"}},
			}
			return nil
		}}
	}}
	cli := newTestClient(t, tasks, nil)

	task, err := cli.LoadTask(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", task.ID)
	require.Equal(t, a2a.TaskStateInputRequired, task.Status.State)
	require.Len(t, task.History, 1)
}

func TestAppendEventRequiresContext(t *testing.T) {
	cli := newTestClient(t, nil, nil)
	err := cli.AppendEvent(context.Background(), "", session.Event{ID: "e1"})
	require.ErrorIs(t, err, session.ErrContextRequired)
}

func TestAppendEventStampsTimestamp(t *testing.T) {
	var inserted eventDocument
	events := &fakeCollection{insertOne: func(doc any) (*mongodriver.InsertOneResult, error) {
		var ok bool
		inserted, ok = doc.(eventDocument)
		require.True(t, ok)
		return &mongodriver.InsertOneResult{}, nil
	}}
	cli := newTestClient(t, nil, events)

	require.NoError(t, cli.AppendEvent(context.Background(), "c1", session.Event{ID: "e1", Kind: "message"}))
	require.Equal(t, "c1", inserted.ContextID)
	require.False(t, inserted.Timestamp.IsZero(), "zero timestamps are stamped at write time")
}

func TestTaskDocumentRoundTrip(t *testing.T) {
	task := a2a.Task{
		ID:        "t1",
		ContextID: "c1",
		Status:    a2a.NewStatus(a2a.TaskStateCompleted, nil),
		History:   []a2a.Message{{MessageID: "m1"}},
		Artifacts: []a2a.Artifact{{ArtifactID: "a1"}},
		Metadata:  map[string]any{"k": "v"},
	}
	out := fromTask(task).toTask()
	require.Equal(t, task.ID, out.ID)
	require.Equal(t, task.ContextID, out.ContextID)
	require.Equal(t, task.Status.State, out.Status.State)
	require.Equal(t, task.History, out.History)
	require.Equal(t, task.Artifacts, out.Artifacts)
	require.Equal(t, task.Metadata, out.Metadata)
}
