package exec

import (
	"context"

	"github.com/google/uuid"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/adapter"
	"github.com/aionlabs/aion/runtime/events"
	"github.com/aionlabs/aion/runtime/telemetry"
)

// Converter translates canonical execution events into ordered wire events.
// It owns the streaming-artifact state machine: the first message chunk opens
// the live STREAM_DELTA artifact, subsequent chunks append to it, and the
// stream is closed exactly once, by a following full message, a chunk flagged
// last, or CloseStream at end of turn.
//
// A Converter is created fresh per turn and must not be shared across turns:
// its streaming flag is the only mutable state, and it is turn-scoped by
// construction. Convert is called once per canonical event, in arrival order.
type Converter struct {
	turn      Turn
	log       telemetry.Logger
	streaming bool
}

// NewConverter returns a converter for one turn. log may be nil, in which
// case conversion is silent.
func NewConverter(turn Turn, log telemetry.Logger) *Converter {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Converter{turn: turn, log: log}
}

// Convert maps one canonical event to zero or more wire events. The dispatch
// is exhaustive over the canonical vocabulary; unknown dynamic types cannot
// occur because the events union is sealed.
func (c *Converter) Convert(ctx context.Context, ev events.Event) []a2a.Event {
	switch ev := ev.(type) {
	case *events.MessageChunk:
		return c.convertChunk(ev)
	case *events.MessageFull:
		return c.convertFull(ev)
	case *events.ArtifactUpdate:
		return []a2a.Event{&a2a.ArtifactUpdateEvent{
			TaskID:    c.turn.TaskID,
			ContextID: c.turn.ContextID,
			Artifact:  ev.Artifact,
			Append:    ev.Append,
			LastChunk: ev.LastChunk,
		}}
	case *events.StateUpdate:
		return c.convertStateUpdate(ev)
	case *events.NodeUpdate:
		// Trace-only: the cycle executor records the active node.
		return nil
	case *events.Custom:
		c.log.Debug(ctx, "custom event not client-visible", "type", ev.Type)
		return nil
	case *events.Interrupt:
		return c.convertInterrupt(ctx, ev)
	case *events.Complete:
		return []a2a.Event{c.statusEvent(a2a.TaskStateCompleted, nil, true, nil)}
	case *events.Error:
		// Error detail stays server-side; the client sees only the state.
		c.log.Error(ctx, "execution error", "error", ev.Message, "kind", ev.Kind)
		return []a2a.Event{c.statusEvent(a2a.TaskStateFailed, nil, true, nil)}
	case nil:
		return nil
	default:
		return nil
	}
}

// CloseStream closes the live streaming artifact if it is still open. The
// executor calls it after the native stream is drained so a turn that ends
// mid-stream (chunks without a confirming full message) still closes the
// artifact exactly once before reconciliation events are emitted.
func (c *Converter) CloseStream() []a2a.Event {
	if !c.streaming {
		return nil
	}
	c.streaming = false
	return []a2a.Event{c.streamClose()}
}

func (c *Converter) convertChunk(ev *events.MessageChunk) []a2a.Event {
	if len(ev.Parts) == 0 && !ev.LastChunk {
		// No-op ping; nothing to show.
		return nil
	}
	appendFlag := c.streaming
	c.streaming = !ev.LastChunk
	return []a2a.Event{&a2a.ArtifactUpdateEvent{
		TaskID:    c.turn.TaskID,
		ContextID: c.turn.ContextID,
		Artifact: a2a.Artifact{
			ArtifactID: a2a.ArtifactIDStreamDelta,
			Name:       a2a.ArtifactNameStreamDelta,
			Parts:      ev.Parts,
			Metadata: map[string]any{
				a2a.MetadataKeyStreamStatus:       a2a.StreamStatusActive,
				a2a.MetadataKeyStreamStatusReason: a2a.StreamReasonChunk,
			},
		},
		Append:    appendFlag,
		LastChunk: ev.LastChunk,
	}}
}

func (c *Converter) convertFull(ev *events.MessageFull) []a2a.Event {
	var out []a2a.Event
	if !ev.Progress {
		out = append(out, c.CloseStream()...)
	}

	var textParts []a2a.Part
	for idx, part := range ev.Parts {
		if part.Kind != a2a.PartKindFile {
			textParts = append(textParts, part)
			continue
		}
		// File parts are never folded into message content: each becomes a
		// standalone single-shot artifact.
		out = append(out, &a2a.ArtifactUpdateEvent{
			TaskID:    c.turn.TaskID,
			ContextID: c.turn.ContextID,
			Artifact: a2a.Artifact{
				ArtifactID: uuid.NewString(),
				Name:       a2a.ArtifactNameOutputFile,
				Parts:      []a2a.Part{part},
				Metadata:   map[string]any{a2a.MetadataKeyFileIndex: idx},
			},
			Append:    false,
			LastChunk: true,
		})
	}

	if len(textParts) > 0 {
		msg := a2a.NewMessage(c.turn.TaskID, c.turn.ContextID, ev.Role, textParts)
		out = append(out, c.statusEvent(a2a.TaskStateWorking, &msg, false, a2a.FilterMetadata(ev.Metadata)))
	}
	return out
}

// convertStateUpdate surfaces only the client-visible slice of a state
// delta: internal updates produce nothing, and the outbox state channel
// plus reserved-namespace keys are stripped from the rest.
func (c *Converter) convertStateUpdate(ev *events.StateUpdate) []a2a.Event {
	if ev.Internal {
		return nil
	}
	filtered := a2a.FilterMetadata(ev.Data)
	delete(filtered, adapter.StateKeyOutbox)
	if len(filtered) == 0 {
		return nil
	}
	return []a2a.Event{c.statusEvent(a2a.TaskStateWorking, nil, false, filtered)}
}

func (c *Converter) convertInterrupt(ctx context.Context, ev *events.Interrupt) []a2a.Event {
	var msg *a2a.Message
	if len(ev.Interrupts) > 0 {
		// Multiple simultaneous interrupts are accepted; the first drives
		// the user-facing prompt.
		info := ev.Interrupts[0]
		m := a2a.NewMessage(c.turn.TaskID, c.turn.ContextID, a2a.RoleAgent,
			[]a2a.Part{a2a.TextPart(info.PromptText())})
		m.Metadata = map[string]any{a2a.MetadataKeyInterruptID: info.ID}
		msg = &m
		c.log.Info(ctx, "turn paused awaiting input",
			"interrupts", len(ev.Interrupts), "interrupt_id", info.ID)
	}
	// The turn is paused, not finished: input-required is never final.
	return []a2a.Event{c.statusEvent(a2a.TaskStateInputRequired, msg, false, nil)}
}

func (c *Converter) statusEvent(state a2a.TaskState, msg *a2a.Message, final bool, md map[string]any) a2a.Event {
	return &a2a.StatusUpdateEvent{
		TaskID:    c.turn.TaskID,
		ContextID: c.turn.ContextID,
		Status:    a2a.NewStatus(state, msg),
		Final:     final,
		Metadata:  md,
	}
}

func (c *Converter) streamClose() a2a.Event {
	return &a2a.ArtifactUpdateEvent{
		TaskID:    c.turn.TaskID,
		ContextID: c.turn.ContextID,
		Artifact: a2a.Artifact{
			ArtifactID: a2a.ArtifactIDStreamDelta,
			Name:       a2a.ArtifactNameStreamDelta,
			Parts:      []a2a.Part{},
			Metadata: map[string]any{
				a2a.MetadataKeyStreamStatus: a2a.StreamStatusCompleted,
			},
		},
		Append:    true,
		LastChunk: true,
	}
}
