// Package graph normalizes native events produced by graph-based agent
// executors. Graph runtimes stream (kind, payload) pairs: full state values,
// per-node update maps, messages (complete or chunked), and typed custom
// payloads raised by graph nodes. The normalizer maps each pair onto at most
// one canonical execution event; nothing downstream sees graph-native
// shapes.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/events"
	"github.com/aionlabs/aion/runtime/telemetry"
)

type (
	// Event is one native event emitted by a graph executor.
	Event struct {
		// Kind is the stream mode that produced the payload: "values",
		// "updates", "messages", or "custom".
		Kind string
		// Payload is the kind-specific payload.
		Payload any
	}

	// Message is the native message payload carried by "messages" events.
	Message struct {
		// Type is the graph-native author type ("ai", "human", "system",
		// "tool").
		Type string
		// Content is the message content: a plain string or an ordered list
		// of content blocks (map[string]any with a "type" discriminator).
		Content any
		// ToolCalls lists tool invocations requested by the message.
		ToolCalls []ToolCall
		// Chunk reports whether the message is a streaming fragment.
		Chunk bool
		// ChunkPosition is "last" on the final fragment of a stream.
		ChunkPosition string
	}

	// ToolCall is a tool invocation requested by a graph node.
	ToolCall struct {
		// ID identifies the call for response correlation.
		ID string
		// Name is the tool name.
		Name string
		// Args holds the invocation arguments.
		Args map[string]any
	}

	// MessagePayload is a custom payload carrying an explicit message.
	MessagePayload struct {
		// Message is the message to surface.
		Message Message
		// Ephemeral marks display-only messages that must not be persisted;
		// they surface as transient artifacts instead of status messages.
		Ephemeral bool
	}

	// ArtifactPayload is a custom payload carrying a raw artifact emission.
	ArtifactPayload struct {
		// Artifact is the artifact to forward unchanged.
		Artifact a2a.Artifact
		// Append reports whether the parts extend a prior emission.
		Append bool
		// LastChunk reports whether the artifact is complete.
		LastChunk bool
	}

	// TaskUpdatePayload is a custom payload carrying a progress message
	// and/or client-visible metadata.
	TaskUpdatePayload struct {
		// Message optionally carries a progress message.
		Message *Message
		// Metadata holds update metadata; reserved-namespace keys are
		// filtered before anything reaches the client.
		Metadata map[string]any
	}

	// Normalizer maps graph-native events onto the canonical vocabulary.
	// It never fails: malformed input degrades to a classified Custom event.
	Normalizer struct {
		log telemetry.Logger
	}
)

// Native event kinds.
const (
	// KindValues carries a full state value snapshot.
	KindValues = "values"
	// KindUpdates carries a per-node state delta keyed by node name.
	KindUpdates = "updates"
	// KindMessages carries a Message, chunked or complete.
	KindMessages = "messages"
	// KindCustom carries a typed custom payload raised by a node.
	KindCustom = "custom"
)

// Graph-native author types.
const (
	typeHuman = "human"
)

// NewNormalizer returns a graph event normalizer. log may be nil.
func NewNormalizer(log telemetry.Logger) *Normalizer {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Normalizer{log: log}
}

// Normalize implements adapter.Normalizer.
func (n *Normalizer) Normalize(ctx context.Context, native any) events.Event {
	ev, ok := asEvent(native)
	if !ok {
		n.log.Warn(ctx, "unrecognized graph event", "type", typeName(native))
		return &events.Custom{Type: events.CustomTypeUnknown, Data: native}
	}

	switch ev.Kind {
	case KindValues:
		if data, ok := ev.Payload.(map[string]any); ok {
			// Full snapshots carry the whole graph state, conversation
			// messages and outbox included; they are session-only.
			return &events.StateUpdate{Data: data, Internal: true}
		}
		n.log.Warn(ctx, "values payload is not a map", "type", typeName(ev.Payload))
		return &events.Custom{Type: events.CustomTypeUnknown, Data: ev.Payload}
	case KindUpdates:
		return n.normalizeUpdate(ctx, ev.Payload)
	case KindMessages:
		return n.normalizeMessage(ctx, ev.Payload)
	case KindCustom:
		return n.normalizeCustom(ctx, ev.Payload)
	default:
		n.log.Warn(ctx, "unknown graph event kind", "kind", ev.Kind)
		return &events.Custom{Type: events.CustomTypeUnknown, Data: ev.Payload}
	}
}

// normalizeUpdate extracts the active node name from an "updates" payload.
// Update payloads are maps keyed by node name; the first key in stable order
// identifies the node that just ran.
func (n *Normalizer) normalizeUpdate(ctx context.Context, payload any) events.Event {
	data, ok := payload.(map[string]any)
	if !ok || len(data) == 0 {
		return nil
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return &events.NodeUpdate{NodeName: names[0]}
}

func (n *Normalizer) normalizeMessage(ctx context.Context, payload any) events.Event {
	msg, ok := asMessage(payload)
	if !ok {
		n.log.Warn(ctx, "unrecognized message payload", "type", typeName(payload))
		return &events.Custom{Type: events.CustomTypeUnknown, Data: payload}
	}
	if len(msg.ToolCalls) > 0 && !msg.Chunk {
		return &events.Custom{Type: events.CustomTypeToolCalls, Data: map[string]any{
			"tool_calls": msg.ToolCalls,
		}}
	}

	parts := contentParts(msg.Content)
	role := normalizeRole(msg.Type)
	if msg.Chunk {
		return &events.MessageChunk{
			Parts:     parts,
			Role:      role,
			LastChunk: msg.ChunkPosition == "last",
		}
	}
	return &events.MessageFull{Parts: parts, Role: role}
}

func (n *Normalizer) normalizeCustom(ctx context.Context, payload any) events.Event {
	switch payload := payload.(type) {
	case ArtifactPayload:
		return &events.ArtifactUpdate{
			Artifact:  payload.Artifact,
			Append:    payload.Append,
			LastChunk: payload.LastChunk,
		}
	case *ArtifactPayload:
		return n.normalizeCustom(ctx, *payload)
	case MessagePayload:
		if payload.Ephemeral {
			return ephemeralArtifact(payload.Message)
		}
		return n.normalizeMessage(ctx, payload.Message)
	case *MessagePayload:
		return n.normalizeCustom(ctx, *payload)
	case TaskUpdatePayload:
		return n.normalizeTaskUpdate(payload)
	case *TaskUpdatePayload:
		return n.normalizeCustom(ctx, *payload)
	default:
		n.log.Debug(ctx, "unmodeled custom payload", "type", typeName(payload))
		return &events.Custom{Type: events.CustomTypeUnknown, Data: payload}
	}
}

// normalizeTaskUpdate maps a task-update payload: a message (with optional
// metadata attached) when present, a bare state update otherwise.
func (n *Normalizer) normalizeTaskUpdate(payload TaskUpdatePayload) events.Event {
	if payload.Message != nil {
		if parts := contentParts(payload.Message.Content); len(parts) > 0 {
			return &events.MessageFull{
				Parts:    parts,
				Role:     a2a.RoleAgent,
				Metadata: payload.Metadata,
				Progress: true,
			}
		}
	}
	if len(payload.Metadata) == 0 {
		return nil
	}
	return &events.StateUpdate{Data: payload.Metadata}
}

// ephemeralArtifact wraps a transient message in the well-known ephemeral
// artifact identity so clients display it without persisting it.
func ephemeralArtifact(msg Message) events.Event {
	text := a2a.Text(contentParts(msg.Content))
	if text == "" {
		return nil
	}
	return &events.ArtifactUpdate{
		Artifact: a2a.Artifact{
			ArtifactID: a2a.ArtifactIDEphemeralMessage,
			Name:       a2a.ArtifactNameEphemeralMessage,
			Parts:      []a2a.Part{a2a.TextPart(text)},
		},
		Append:    false,
		LastChunk: true,
	}
}

// contentParts splits graph-native message content into ordered protocol
// parts. String content becomes a single text part; block lists preserve
// source order with text, file, and data blocks mapped to their respective
// part kinds. Unknown blocks degrade to data parts rather than being
// dropped.
func contentParts(content any) []a2a.Part {
	switch content := content.(type) {
	case nil:
		return nil
	case string:
		if content == "" {
			return nil
		}
		return []a2a.Part{a2a.TextPart(content)}
	case []any:
		var parts []a2a.Part
		for _, item := range content {
			switch item := item.(type) {
			case string:
				parts = append(parts, a2a.TextPart(item))
			case map[string]any:
				parts = append(parts, blockPart(item))
			}
		}
		return parts
	case []map[string]any:
		parts := make([]a2a.Part, 0, len(content))
		for _, item := range content {
			parts = append(parts, blockPart(item))
		}
		return parts
	default:
		return nil
	}
}

func blockPart(block map[string]any) a2a.Part {
	switch block["type"] {
	case "text", nil:
		text, _ := block["text"].(string)
		return a2a.TextPart(text)
	case "file":
		file := a2a.FileContent{}
		file.Name, _ = block["name"].(string)
		file.MIMEType, _ = block["mime_type"].(string)
		file.URI, _ = block["url"].(string)
		if file.URI == "" {
			file.Bytes, _ = block["base64"].(string)
		}
		if file.MIMEType == "" {
			file.MIMEType = "application/octet-stream"
		}
		return a2a.FilePart(file)
	default:
		return a2a.DataPart(block)
	}
}

func normalizeRole(msgType string) a2a.Role {
	if msgType == typeHuman {
		return a2a.RoleUser
	}
	return a2a.RoleAgent
}

func asEvent(native any) (Event, bool) {
	switch native := native.(type) {
	case Event:
		return native, true
	case *Event:
		if native == nil {
			return Event{}, false
		}
		return *native, true
	default:
		return Event{}, false
	}
}

func asMessage(payload any) (Message, bool) {
	switch payload := payload.(type) {
	case Message:
		return payload, true
	case *Message:
		if payload == nil {
			return Message{}, false
		}
		return *payload, true
	default:
		return Message{}, false
	}
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
