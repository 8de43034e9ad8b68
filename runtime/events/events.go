// Package events defines the closed set of canonical execution events
// produced by runtime normalizers. Every supported agent runtime (graph
// executors, tool-calling loops) maps its native event stream onto this
// vocabulary once, at the normalizer boundary; the protocol converter then
// performs a single exhaustive dispatch and nothing downstream inspects
// runtime-native types again.
package events

import "github.com/aionlabs/aion/a2a"

type (
	// Event is the sealed canonical event union. Exactly the types in this
	// package implement it.
	Event interface {
		isEvent()
	}

	// MessageChunk is a streaming message fragment. A sequence of chunks
	// drives the live streaming artifact; the stream is closed either by a
	// chunk with LastChunk set, by a following MessageFull, or by end-of-turn
	// reconciliation.
	MessageChunk struct {
		// Parts are the ordered content parts of the fragment.
		Parts []a2a.Part
		// Role is the normalized author role.
		Role a2a.Role
		// LastChunk reports whether this fragment terminates the stream.
		LastChunk bool
	}

	// MessageFull is a complete, non-chunked message.
	MessageFull struct {
		// Parts are the ordered content parts of the message.
		Parts []a2a.Part
		// Role is the normalized author role.
		Role a2a.Role
		// Metadata optionally carries update metadata to attach to the
		// resulting status update. Reserved-namespace keys are filtered out
		// before emission.
		Metadata map[string]any
		// Progress marks an out-of-band progress message raised while the
		// response may still be streaming. Progress messages leave the live
		// streaming artifact open.
		Progress bool
	}

	// ArtifactUpdate is an explicit out-of-band artifact emission that
	// bypasses message conversion and is forwarded to the wire unchanged.
	ArtifactUpdate struct {
		// Artifact is the artifact content.
		Artifact a2a.Artifact
		// Append reports whether the parts extend a previously opened
		// artifact.
		Append bool
		// LastChunk reports whether the artifact is complete.
		LastChunk bool
	}

	// StateUpdate is an internal state delta. Only non-reserved keys of
	// non-internal updates are client-visible, as status-update metadata.
	StateUpdate struct {
		// Data holds the state values keyed by state key.
		Data map[string]any
		// Internal marks updates that exist for session persistence only.
		// Full state snapshots and loop state mutations carry runtime
		// internals, the outbox payload included, and never reach clients.
		Internal bool
	}

	// NodeUpdate signals that a new graph node or loop step became active.
	// It produces no wire event; it exists for tracing and logging.
	NodeUpdate struct {
		// NodeName is the name of the active node.
		NodeName string
	}

	// Custom is the escape hatch for runtime payloads the canonical
	// vocabulary does not model (tool calls, tool responses, unrecognized
	// events). Custom events produce no wire events but are preserved for
	// observability and session persistence.
	Custom struct {
		// Type classifies the payload ("tool_calls", "tool_responses", or
		// CustomTypeUnknown for unrecognized native events).
		Type string
		// Data is the best-effort extracted payload.
		Data any
	}

	// Interrupt reports that the turn paused awaiting external input.
	Interrupt struct {
		// Interrupts lists the pending interrupts. Multiple simultaneous
		// interrupts are accepted; only the first drives the user-facing
		// message.
		Interrupts []InterruptInfo
	}

	// Complete reports that the turn finished normally.
	Complete struct{}

	// Error reports that the turn aborted. Message and Kind are logged
	// server-side only and never exposed to clients.
	Error struct {
		// Message is the error description.
		Message string
		// Kind is the error class name.
		Kind string
	}

	// InterruptInfo describes one pending interrupt.
	InterruptInfo struct {
		// ID identifies the interrupt for resumption.
		ID string
		// Value is the raw interrupt payload raised by the agent.
		Value any
		// Prompt is the question to present to the user, when the agent
		// provided one.
		Prompt string
		// Options lists valid user responses, when constrained.
		Options []string
		// Metadata holds additional interrupt metadata.
		Metadata map[string]any
	}
)

// Custom event type classifiers.
const (
	// CustomTypeToolCalls marks tool/function call payloads.
	CustomTypeToolCalls = "tool_calls"
	// CustomTypeToolResponses marks tool/function response payloads.
	CustomTypeToolResponses = "tool_responses"
	// CustomTypeUnknown marks native events that could not be classified.
	CustomTypeUnknown = "unknown"
)

func (*MessageChunk) isEvent()   {}
func (*MessageFull) isEvent()    {}
func (*ArtifactUpdate) isEvent() {}
func (*StateUpdate) isEvent()    {}
func (*NodeUpdate) isEvent()     {}
func (*Custom) isEvent()         {}
func (*Interrupt) isEvent()      {}
func (*Complete) isEvent()       {}
func (*Error) isEvent()          {}

// PromptText returns the user-facing prompt for the interrupt: the explicit
// prompt when set, otherwise the raw value when it is text, otherwise a
// generic placeholder. It never returns an empty string.
func (i InterruptInfo) PromptText() string {
	if i.Prompt != "" {
		return i.Prompt
	}
	if s, ok := i.Value.(string); ok && s != "" {
		return s
	}
	return "Agent execution paused, input required."
}

// Settled reports whether the event represents durable turn content that the
// session collaborator should persist. Streaming chunks are transient: their
// content is confirmed later by a full message or by reconciliation.
func Settled(ev Event) bool {
	switch ev.(type) {
	case *MessageChunk:
		return false
	case nil:
		return false
	default:
		return true
	}
}
