package a2a

import "context"

type (
	// EventKind identifies the wire event shape.
	EventKind string

	// Event is a protocol-level streaming event consumed by the transport or
	// task-store collaborator. Exactly two concrete shapes exist:
	// StatusUpdateEvent and ArtifactUpdateEvent. Events are immutable after
	// construction and safe to send concurrently.
	Event interface {
		// Kind returns the wire event kind.
		Kind() EventKind
		// Refs returns the task and context identifiers the event belongs to.
		Refs() (taskID, contextID string)
	}

	// StatusUpdateEvent reports a task state transition, optionally carrying
	// a message and client-visible metadata.
	StatusUpdateEvent struct {
		// TaskID is the task the event belongs to.
		TaskID string `json:"taskId"`
		// ContextID is the conversation context of the task.
		ContextID string `json:"contextId"`
		// Status is the new task status.
		Status TaskStatus `json:"status"`
		// Final reports whether this is the terminal event of the turn.
		// Input-required pauses are not terminal: the turn may resume.
		Final bool `json:"final"`
		// Metadata holds optional client-visible event metadata. Reserved
		// namespace keys are filtered before the event is constructed.
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	// ArtifactUpdateEvent delivers artifact content, either the append-mode
	// streaming artifact or a standalone artifact emitted in one piece.
	ArtifactUpdateEvent struct {
		// TaskID is the task the event belongs to.
		TaskID string `json:"taskId"`
		// ContextID is the conversation context of the task.
		ContextID string `json:"contextId"`
		// Artifact is the artifact content carried by the event.
		Artifact Artifact `json:"artifact"`
		// Append reports whether Parts extend a previously opened artifact
		// (true) or start a new one (false).
		Append bool `json:"append"`
		// LastChunk reports whether the artifact is complete after this
		// event.
		LastChunk bool `json:"lastChunk"`
	}

	// Sink consumes the ordered wire event sequence of a turn. Transports
	// (SSE, WebSocket, Pulse streams) and task stores implement Sink.
	// Implementations must be safe for concurrent use across turns; within
	// one turn events arrive sequentially.
	//
	// Send returning an error signals that the consumer is gone (client
	// disconnect, closed stream). The execution engine stops the turn's
	// native iteration in response; it never drops or coalesces events to
	// compensate for a slow sink.
	Sink interface {
		// Send delivers a single wire event. Implementations own marshaling
		// and transport delivery semantics.
		Send(ctx context.Context, event Event) error
		// Close releases resources owned by the sink. Close is idempotent.
		Close(ctx context.Context) error
	}
)

const (
	// EventKindStatusUpdate identifies StatusUpdateEvent.
	EventKindStatusUpdate EventKind = "status-update"
	// EventKindArtifactUpdate identifies ArtifactUpdateEvent.
	EventKindArtifactUpdate EventKind = "artifact-update"
)

// Kind implements Event.
func (e *StatusUpdateEvent) Kind() EventKind { return EventKindStatusUpdate }

// Refs implements Event.
func (e *StatusUpdateEvent) Refs() (string, string) { return e.TaskID, e.ContextID }

// Kind implements Event.
func (e *ArtifactUpdateEvent) Kind() EventKind { return EventKindArtifactUpdate }

// Refs implements Event.
func (e *ArtifactUpdateEvent) Refs() (string, string) { return e.TaskID, e.ContextID }
