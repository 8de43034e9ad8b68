// Package a2a defines the task protocol data model exchanged with clients:
// messages and their content parts, tasks, artifacts, and the two streaming
// wire event shapes (status updates and artifact updates). Field names use
// camelCase JSON tags to conform to the A2A protocol specification.
//
// The package is transport-agnostic: it describes the logical event sequence
// produced by the runtime execution engine. Transports (SSE, WebSocket, Pulse)
// implement the Sink interface and own the framing.
//
//nolint:tagliatelle // A2A protocol specification requires camelCase JSON field names
package a2a

import (
	"time"

	"github.com/google/uuid"
)

type (
	// Role identifies the author of a message. The protocol knows exactly two
	// roles; runtime-specific roles (assistant, system, tool, node names) are
	// collapsed to RoleAgent by NormalizeRole.
	Role string

	// PartKind discriminates the content part union.
	PartKind string

	// Part is one ordered unit of message or artifact content. Exactly the
	// fields implied by Kind are set: Text for text parts, File for file
	// parts, Data for structured data parts.
	Part struct {
		// Kind identifies the part type: "text", "file", or "data".
		Kind PartKind `json:"kind"`
		// Text is the textual content when Kind == PartKindText.
		Text string `json:"text,omitempty"`
		// File describes the file content when Kind == PartKindFile.
		File *FileContent `json:"file,omitempty"`
		// Data is the structured payload when Kind == PartKindData.
		Data map[string]any `json:"data,omitempty"`
		// Metadata holds optional part-level metadata.
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	// FileContent describes a file carried by a file part. Either URI or
	// Bytes is set, never both.
	FileContent struct {
		// Name is the optional display name of the file.
		Name string `json:"name,omitempty"`
		// MIMEType is the file media type.
		MIMEType string `json:"mimeType,omitempty"`
		// URI references externally hosted file content.
		URI string `json:"uri,omitempty"`
		// Bytes holds base64-encoded inline file content.
		Bytes string `json:"bytes,omitempty"`
	}

	// Message is a single protocol message in a task conversation.
	Message struct {
		// MessageID is the unique identifier of the message.
		MessageID string `json:"messageId"`
		// TaskID is the task this message belongs to.
		TaskID string `json:"taskId,omitempty"`
		// ContextID is the conversation context the message belongs to.
		ContextID string `json:"contextId,omitempty"`
		// Role is the normalized author role.
		Role Role `json:"role"`
		// Parts are the ordered content parts.
		Parts []Part `json:"parts"`
		// Metadata holds optional message metadata.
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	// Artifact is an output attached to a task: a file, a structured result,
	// or the live streaming artifact identified by ArtifactIDStreamDelta.
	Artifact struct {
		// ArtifactID uniquely identifies the artifact within its task.
		ArtifactID string `json:"artifactId"`
		// Name is the artifact display name.
		Name string `json:"name,omitempty"`
		// Description is an optional human-readable description.
		Description string `json:"description,omitempty"`
		// Parts are the artifact content parts.
		Parts []Part `json:"parts"`
		// Metadata holds optional artifact metadata.
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	// TaskState is the canonical lifecycle state of a task.
	TaskState string

	// TaskStatus is a snapshot of a task's state at a point in time.
	TaskStatus struct {
		// State is the canonical task state.
		State TaskState `json:"state"`
		// Message is an optional message associated with the status.
		Message *Message `json:"message,omitempty"`
		// Timestamp is the RFC3339 time the status was produced.
		Timestamp string `json:"timestamp,omitempty"`
	}

	// Task is the denormalized task view: current status plus accumulated
	// history and artifacts. The server owns ID, ContextID, and Status; agent
	// code may propose additions through the outbox task-patch mechanism.
	Task struct {
		// ID is the unique task identifier.
		ID string `json:"id"`
		// ContextID groups tasks belonging to one conversation.
		ContextID string `json:"contextId"`
		// Status is the most recent task status snapshot.
		Status TaskStatus `json:"status"`
		// History is the ordered message history of the task.
		History []Message `json:"history,omitempty"`
		// Artifacts are the output artifacts accumulated so far.
		Artifacts []Artifact `json:"artifacts,omitempty"`
		// Metadata holds task-level metadata.
		Metadata map[string]any `json:"metadata,omitempty"`
	}
)

const (
	// RoleUser marks messages authored by the end user.
	RoleUser Role = "user"
	// RoleAgent marks messages authored by the agent. All non-user runtime
	// roles normalize to RoleAgent.
	RoleAgent Role = "agent"
)

const (
	// PartKindText identifies a text part.
	PartKindText PartKind = "text"
	// PartKindFile identifies a file part.
	PartKindFile PartKind = "file"
	// PartKindData identifies a structured data part.
	PartKindData PartKind = "data"
)

const (
	// TaskStateSubmitted indicates the task was accepted but not started.
	TaskStateSubmitted TaskState = "submitted"
	// TaskStateWorking indicates the task is executing.
	TaskStateWorking TaskState = "working"
	// TaskStateInputRequired indicates the task is paused awaiting user input.
	TaskStateInputRequired TaskState = "input-required"
	// TaskStateCompleted indicates the task finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the task aborted with an error.
	TaskStateFailed TaskState = "failed"
	// TaskStateCanceled indicates the task was canceled externally.
	TaskStateCanceled TaskState = "canceled"
)

// Well-known artifact identities. The streaming artifact uses fixed id and
// name so any client can recognize live-typing output regardless of which
// runtime produced it.
const (
	// ArtifactIDStreamDelta is the artifact id of the single live streaming
	// artifact of a turn.
	ArtifactIDStreamDelta = "stream_delta"
	// ArtifactNameStreamDelta is the display name of the streaming artifact.
	ArtifactNameStreamDelta = "stream_delta"
	// ArtifactIDEphemeralMessage is the artifact id used for transient
	// display-only messages that are not persisted to task history.
	ArtifactIDEphemeralMessage = "ephemeral_message"
	// ArtifactNameEphemeralMessage is the display name of ephemeral message
	// artifacts.
	ArtifactNameEphemeralMessage = "ephemeral_message"
	// ArtifactNameOutputFile is the display name given to standalone file
	// artifacts extracted from agent messages.
	ArtifactNameOutputFile = "output_file"
)

// NormalizeRole collapses arbitrary runtime role strings onto the protocol
// role set: "user" maps to RoleUser, everything else (assistant, system,
// tool, node names) maps to RoleAgent.
func NormalizeRole(role string) Role {
	if role == string(RoleUser) {
		return RoleUser
	}
	return RoleAgent
}

// TextPart returns a text content part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart returns a structured data content part.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// FilePart returns a file content part.
func FilePart(file FileContent) Part {
	f := file
	return Part{Kind: PartKindFile, File: &f}
}

// Text concatenates the text of all text parts in order. File and data parts
// contribute nothing.
func Text(parts []Part) string {
	var out string
	for _, p := range parts {
		if p.Kind == PartKindText {
			out += p.Text
		}
	}
	return out
}

// NewMessage builds a message with a fresh message id bound to the given
// task and context.
func NewMessage(taskID, contextID string, role Role, parts []Part) Message {
	return Message{
		MessageID: uuid.NewString(),
		TaskID:    taskID,
		ContextID: contextID,
		Role:      role,
		Parts:     parts,
	}
}

// NewStatus builds a status snapshot stamped with the current UTC time.
func NewStatus(state TaskState, msg *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MergePatch merges an agent-proposed task patch into the task. Server-owned
// fields (ID, ContextID, Status) are retained from the current task. History
// and artifacts are appended, patch entries after current entries. Metadata
// is a shallow merge in which the current task wins over the patch for
// reserved-namespace keys so runtime output cannot clobber server-controlled
// metadata.
func (t *Task) MergePatch(patch *Task) {
	if patch == nil {
		return
	}
	t.History = append(t.History, patch.History...)
	t.Artifacts = append(t.Artifacts, patch.Artifacts...)
	t.Metadata = MergeMetadata(t.Metadata, patch.Metadata)
}
