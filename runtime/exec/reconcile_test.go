package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/adapter"
)

func seedTask(t *testing.T, store a2a.TaskStore) *a2a.Task {
	t.Helper()
	task := &a2a.Task{
		ID:        testTurn.TaskID,
		ContextID: testTurn.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateWorking, nil),
		Metadata:  map[string]any{"aion:owner": "server", "label": "old"},
	}
	require.NoError(t, store.Save(context.Background(), task))
	return task
}

func TestReconcileOutboxMessageWins(t *testing.T) {
	ctx := context.Background()
	store := a2a.NewMemoryTaskStore()
	seedTask(t, store)
	rec := NewReconciler(testTurn, store, nil)

	snap := adapter.Snapshot{Outbox: &adapter.OutboxMessage{
		Message: a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("done")}},
	}}
	// The outbox wins even when the stream already produced a message.
	out, err := rec.Reconcile(ctx, StreamResult{HasFinalMessage: true, AccumulatedText: "partial"}, snap)
	require.NoError(t, err)
	require.Len(t, out, 1)

	st := statusEvent(t, out[0])
	require.Equal(t, a2a.TaskStateWorking, st.Status.State)
	require.Equal(t, "done", a2a.Text(st.Status.Message.Parts))
	require.Equal(t, testTurn.TaskID, st.Status.Message.TaskID)
	require.Equal(t, testTurn.ContextID, st.Status.Message.ContextID)
	require.NotEmpty(t, st.Status.Message.MessageID)

	task, err := store.Load(ctx, testTurn.TaskID)
	require.NoError(t, err)
	require.Len(t, task.History, 1)
	require.Equal(t, "done", a2a.Text(task.History[0].Parts))
}

func TestReconcileOutboxMessageUnknownTaskStillEmits(t *testing.T) {
	rec := NewReconciler(testTurn, a2a.NewMemoryTaskStore(), nil)
	snap := adapter.Snapshot{Outbox: &adapter.OutboxMessage{
		Message: a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("done")}},
	}}
	out, err := rec.Reconcile(context.Background(), StreamResult{}, snap)
	require.NoError(t, err)
	require.Len(t, out, 1, "wire event is emitted even without a stored task")
}

func TestReconcileTaskPatch(t *testing.T) {
	ctx := context.Background()
	store := a2a.NewMemoryTaskStore()
	seedTask(t, store)
	rec := NewReconciler(testTurn, store, nil)

	patch := a2a.Task{
		ID:        "agent-forged-id",
		ContextID: "agent-forged-ctx",
		Status:    a2a.NewStatus(a2a.TaskStateCompleted, nil),
		History: []a2a.Message{
			{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("summary")}},
		},
		Artifacts: []a2a.Artifact{
			{ArtifactID: "result-1", Name: "result", Parts: []a2a.Part{a2a.TextPart("42")}},
		},
		Metadata: map[string]any{"aion:owner": "agent", "label": "new"},
	}
	out, err := rec.Reconcile(ctx, StreamResult{}, adapter.Snapshot{Outbox: &adapter.OutboxTask{Task: patch}})
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Metadata status first, then history, then artifacts.
	meta := statusEvent(t, out[0])
	require.Nil(t, meta.Status.Message)
	require.Equal(t, map[string]any{"label": "new"}, meta.Metadata)

	hist := statusEvent(t, out[1])
	require.Equal(t, "summary", a2a.Text(hist.Status.Message.Parts))
	require.Equal(t, testTurn.TaskID, hist.Status.Message.TaskID)

	art := artifactEvent(t, out[2])
	require.Equal(t, "result-1", art.Artifact.ArtifactID)
	require.False(t, art.Append)
	require.True(t, art.LastChunk)

	task, err := store.Load(ctx, testTurn.TaskID)
	require.NoError(t, err)
	require.Equal(t, testTurn.TaskID, task.ID, "server owns identity")
	require.Equal(t, testTurn.ContextID, task.ContextID)
	require.Equal(t, a2a.TaskStateWorking, task.Status.State, "server owns status")
	require.Len(t, task.History, 1)
	require.Len(t, task.Artifacts, 1)
	require.Equal(t, "server", task.Metadata["aion:owner"], "current wins for reserved keys")
	require.Equal(t, "new", task.Metadata["label"], "patch wins for regular keys")
}

func TestReconcileTaskPatchWithoutStoreStillEmits(t *testing.T) {
	rec := NewReconciler(testTurn, nil, nil)
	patch := a2a.Task{
		History:   []a2a.Message{{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("summary")}}},
		Artifacts: []a2a.Artifact{{ArtifactID: "result-1", Parts: []a2a.Part{a2a.TextPart("42")}}},
		Metadata:  map[string]any{"label": "new"},
	}
	out, err := rec.Reconcile(context.Background(), StreamResult{},
		adapter.Snapshot{Outbox: &adapter.OutboxTask{Task: patch}})
	require.NoError(t, err)
	require.Len(t, out, 3, "persistence is skipped but the wire events still flow")

	require.Equal(t, map[string]any{"label": "new"}, statusEvent(t, out[0]).Metadata)
	hist := statusEvent(t, out[1])
	require.Equal(t, "summary", a2a.Text(hist.Status.Message.Parts))
	require.Equal(t, testTurn.TaskID, hist.Status.Message.TaskID)
	require.NotEmpty(t, hist.Status.Message.MessageID)
	require.Equal(t, "result-1", artifactEvent(t, out[2]).Artifact.ArtifactID)
}

func TestReconcileTaskPatchUnknownTask(t *testing.T) {
	rec := NewReconciler(testTurn, a2a.NewMemoryTaskStore(), nil)
	out, err := rec.Reconcile(context.Background(), StreamResult{},
		adapter.Snapshot{Outbox: &adapter.OutboxTask{Task: a2a.Task{Metadata: map[string]any{"k": "v"}}}})
	require.NoError(t, err)
	require.Empty(t, out, "a patch cannot apply without a current task")
}

func TestReconcileFinalMessageSuppressesFallback(t *testing.T) {
	rec := NewReconciler(testTurn, nil, nil)
	out, err := rec.Reconcile(context.Background(),
		StreamResult{HasFinalMessage: true, AccumulatedText: "streamed text"},
		adapter.Snapshot{})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReconcileAccumulatedTextFallback(t *testing.T) {
	rec := NewReconciler(testTurn, nil, nil)
	out, err := rec.Reconcile(context.Background(),
		StreamResult{AccumulatedText: "streamed text"},
		adapter.Snapshot{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	st := statusEvent(t, out[0])
	require.Equal(t, a2a.TaskStateWorking, st.Status.State)
	require.Equal(t, "streamed text", a2a.Text(st.Status.Message.Parts))
}

func TestReconcileNothingToDo(t *testing.T) {
	rec := NewReconciler(testTurn, nil, nil)
	out, err := rec.Reconcile(context.Background(), StreamResult{}, adapter.Snapshot{})
	require.NoError(t, err)
	require.Empty(t, out)
}
