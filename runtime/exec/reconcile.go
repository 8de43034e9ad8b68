package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/adapter"
	"github.com/aionlabs/aion/runtime/telemetry"
)

// Reconciler resolves the wire events that follow a turn's streaming phase.
// It runs once, after the cycle executor's sequence is fully drained and
// before the terminal complete/interrupt event, and reconciles the
// authoritative final-state snapshot with whatever was already streamed.
//
// Precedence, highest first:
//  1. An outbox message: appended to task history and emitted as one
//     working status update under the turn's identifiers.
//  2. An outbox task patch: merged into the current task under server-owned
//     precedence, emitting metadata, history, and artifact events in order.
//  3. A full message already streamed: nothing to add.
//  4. Accumulated streaming text with no confirming message: emitted once as
//     a working status update so chunk-only runtimes still yield a durable
//     message.
//  5. Otherwise nothing.
type Reconciler struct {
	turn  Turn
	tasks a2a.TaskStore
	log   telemetry.Logger
}

// NewReconciler builds a reconciler for one turn. tasks may be nil when no
// task store collaborator is configured; outbox handling then skips history
// and task mutation but still emits the corresponding wire events. log may
// be nil.
func NewReconciler(turn Turn, tasks a2a.TaskStore, log telemetry.Logger) *Reconciler {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Reconciler{turn: turn, tasks: tasks, log: log}
}

// Reconcile inspects the final snapshot and the stream result and returns
// the pre-terminal wire events in emission order.
func (r *Reconciler) Reconcile(ctx context.Context, res StreamResult, snap adapter.Snapshot) ([]a2a.Event, error) {
	switch outbox := snap.Outbox.(type) {
	case *adapter.OutboxMessage:
		return r.reconcileMessage(ctx, outbox.Message)
	case *adapter.OutboxTask:
		return r.reconcileTaskPatch(ctx, &outbox.Task)
	}

	if res.HasFinalMessage {
		// A durable message already reached the client; no fallback.
		return nil, nil
	}
	if res.AccumulatedText != "" {
		msg := a2a.NewMessage(r.turn.TaskID, r.turn.ContextID, a2a.RoleAgent,
			[]a2a.Part{a2a.TextPart(res.AccumulatedText)})
		return []a2a.Event{r.workingStatus(&msg, nil)}, nil
	}
	return nil, nil
}

// reconcileMessage handles an authoritative outbox message: server-owned
// identifiers are enforced, the message is appended to task history, and one
// working status update is emitted.
func (r *Reconciler) reconcileMessage(ctx context.Context, msg a2a.Message) ([]a2a.Event, error) {
	msg.TaskID = r.turn.TaskID
	msg.ContextID = r.turn.ContextID
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	if r.tasks != nil {
		task, err := r.tasks.Load(ctx, r.turn.TaskID)
		switch {
		case errors.Is(err, a2a.ErrTaskNotFound):
			r.log.Warn(ctx, "outbox message for unknown task", "task_id", r.turn.TaskID)
		case err != nil:
			return nil, fmt.Errorf("load task: %w", err)
		default:
			task.History = append(task.History, msg)
			if err := r.tasks.Save(ctx, task); err != nil {
				return nil, fmt.Errorf("append outbox message to history: %w", err)
			}
		}
	}

	return []a2a.Event{r.workingStatus(&msg, nil)}, nil
}

// reconcileTaskPatch merges an agent-proposed task patch into the current
// task and emits the resulting events: one metadata-only status update when
// the filtered patch metadata is non-empty, one working status update per
// appended history entry, and one artifact update per appended artifact.
// Without a task store the merge is skipped and the patch-derived events are
// still emitted; a store-backed patch for an unknown task emits nothing.
func (r *Reconciler) reconcileTaskPatch(ctx context.Context, patch *a2a.Task) ([]a2a.Event, error) {
	// Enforce server-owned identifiers on patch messages before merging.
	history := make([]a2a.Message, len(patch.History))
	for i, msg := range patch.History {
		msg.TaskID = r.turn.TaskID
		msg.ContextID = r.turn.ContextID
		if msg.MessageID == "" {
			msg.MessageID = uuid.NewString()
		}
		history[i] = msg
	}
	merged := *patch
	merged.History = history

	if r.tasks != nil {
		task, err := r.tasks.Load(ctx, r.turn.TaskID)
		if errors.Is(err, a2a.ErrTaskNotFound) {
			r.log.Warn(ctx, "outbox task patch for unknown task", "task_id", r.turn.TaskID)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load task: %w", err)
		}
		task.MergePatch(&merged)
		if err := r.tasks.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("save patched task: %w", err)
		}
	}

	var out []a2a.Event

	// Metadata first so the task store persists it without clearing the
	// current status message.
	if filtered := a2a.FilterMetadata(patch.Metadata); filtered != nil {
		out = append(out, r.workingStatus(nil, filtered))
	}
	for i := range history {
		out = append(out, r.workingStatus(&history[i], nil))
	}
	for _, artifact := range merged.Artifacts {
		out = append(out, &a2a.ArtifactUpdateEvent{
			TaskID:    r.turn.TaskID,
			ContextID: r.turn.ContextID,
			Artifact:  artifact,
			Append:    false,
			LastChunk: true,
		})
	}
	return out, nil
}

func (r *Reconciler) workingStatus(msg *a2a.Message, md map[string]any) a2a.Event {
	return &a2a.StatusUpdateEvent{
		TaskID:    r.turn.TaskID,
		ContextID: r.turn.ContextID,
		Status:    a2a.NewStatus(a2a.TaskStateWorking, msg),
		Final:     false,
		Metadata:  md,
	}
}
