package exec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/adapter"
	"github.com/aionlabs/aion/runtime/events"
	"github.com/aionlabs/aion/runtime/session"
	"github.com/aionlabs/aion/runtime/telemetry"
)

type (
	// StreamResult is the accumulated trailing state of one stream cycle,
	// read after Execute returns and consumed by the reconciler.
	StreamResult struct {
		// AccumulatedText is the concatenated text of all streaming artifact
		// parts emitted during the cycle. Non-empty only matters when the
		// runtime streamed chunks without a confirming full message.
		AccumulatedText string
		// HasFinalMessage reports whether at least one status update carried
		// a message during the cycle. When true the reconciler emits no
		// fallback.
		HasFinalMessage bool
	}

	// EmitFunc receives one wire event. Returning an error stops the cycle;
	// the executor treats it as the consumer having gone away.
	EmitFunc func(ctx context.Context, event a2a.Event) error

	// CycleExecutor drives exactly one turn against an agent runtime: it
	// pulls native events, normalizes each into the canonical vocabulary,
	// persists settled events to the session collaborator, and forwards
	// canonical events through the converter, emitting the resulting wire
	// events in order.
	//
	// The persistence write happens before the corresponding wire events are
	// emitted: a crash between persistence and emission is preferred over
	// the reverse, because history must never miss a turn the client
	// believes happened.
	//
	// Lifecycle: construct, Execute once, read Result. Created fresh per
	// turn; instances share no state across turns.
	CycleExecutor struct {
		runtime adapter.Runtime
		norm    adapter.Normalizer
		conv    *Converter
		sess    session.Store
		log     telemetry.Logger

		accumulated strings.Builder
		hasFinal    bool
	}

	// SinkError wraps an emit failure so the turn driver can tell a vanished
	// consumer apart from a runtime execution failure.
	SinkError struct {
		// Err is the underlying sink error.
		Err error
	}
)

// Error implements error.
func (e *SinkError) Error() string { return fmt.Sprintf("wire sink failed: %v", e.Err) }

// Unwrap returns the underlying sink error.
func (e *SinkError) Unwrap() error { return e.Err }

// NewCycleExecutor builds a cycle executor for one turn. sess may be nil when
// the runtime owns its own persistence; log may be nil.
func NewCycleExecutor(rt adapter.Runtime, norm adapter.Normalizer, conv *Converter, sess session.Store, log telemetry.Logger) *CycleExecutor {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &CycleExecutor{runtime: rt, norm: norm, conv: conv, sess: sess, log: log}
}

// Execute runs the turn's native stream to completion, emitting wire events
// in canonical arrival order. A SinkError return means emit failed and the
// native iteration was stopped; any other error is a runtime execution
// failure.
func (x *CycleExecutor) Execute(ctx context.Context, inputs any, cfg adapter.Config, emit EmitFunc) error {
	// Node updates rebind the loop context so logs and spans attribute
	// subsequent events to the active node.
	loopCtx := ctx
	return x.runtime.Stream(ctx, inputs, cfg, func(native any) error {
		ev := x.norm.Normalize(loopCtx, native)
		if ev == nil {
			return nil
		}

		if node, ok := ev.(*events.NodeUpdate); ok {
			loopCtx = telemetry.WithActiveNode(loopCtx, node.NodeName)
			x.log.Debug(loopCtx, "node active", "node", node.NodeName)
		}

		if events.Settled(ev) && x.sess != nil {
			if rec, ok := sessionEvent(x.conv.turn, ev); ok {
				if err := x.sess.AppendEvent(loopCtx, cfg.ContextID, rec); err != nil {
					return fmt.Errorf("persist session event: %w", err)
				}
			}
		}

		for _, wire := range x.conv.Convert(loopCtx, ev) {
			x.track(wire)
			if err := emit(loopCtx, wire); err != nil {
				return &SinkError{Err: err}
			}
		}
		return nil
	})
}

// Result returns the accumulated state. Valid once Execute has returned.
func (x *CycleExecutor) Result() StreamResult {
	return StreamResult{
		AccumulatedText: x.accumulated.String(),
		HasFinalMessage: x.hasFinal,
	}
}

// track updates the trailing state from an outgoing wire event.
func (x *CycleExecutor) track(wire a2a.Event) {
	switch wire := wire.(type) {
	case *a2a.ArtifactUpdateEvent:
		if wire.Artifact.ArtifactID != a2a.ArtifactIDStreamDelta {
			return
		}
		for _, part := range wire.Artifact.Parts {
			if part.Kind == a2a.PartKindText {
				x.accumulated.WriteString(part.Text)
			}
		}
	case *a2a.StatusUpdateEvent:
		if wire.Status.Message != nil {
			x.hasFinal = true
		}
	}
}

// sessionEvent maps a settled canonical event to its durable history record.
// The second return is false for events with no conversational content.
func sessionEvent(turn Turn, ev events.Event) (session.Event, bool) {
	rec := session.Event{
		ID:        uuid.NewString(),
		TaskID:    turn.TaskID,
		Timestamp: time.Now().UTC(),
	}
	switch ev := ev.(type) {
	case *events.MessageFull:
		rec.Kind = "message"
		rec.Role = ev.Role
		rec.Parts = ev.Parts
	case *events.ArtifactUpdate:
		rec.Kind = "artifact"
		rec.Parts = ev.Artifact.Parts
		rec.Data = map[string]any{"artifactId": ev.Artifact.ArtifactID, "name": ev.Artifact.Name}
	case *events.StateUpdate:
		rec.Kind = "state_update"
		rec.Data = ev.Data
	case *events.Custom:
		rec.Kind = ev.Type
		if data, ok := ev.Data.(map[string]any); ok {
			rec.Data = data
		} else if ev.Data != nil {
			rec.Data = map[string]any{"payload": ev.Data}
		}
	default:
		// Control events (node updates, interrupts, terminal events) are not
		// conversation content.
		return session.Event{}, false
	}
	return rec, true
}
