// Package adapter defines the contract between the execution engine and the
// agent runtimes that drive conversations. A Runtime is an opaque async event
// source: it yields native, runtime-specific events for one conversational
// turn and exposes a final-state snapshot once the turn ends. A Normalizer
// maps each native event onto the canonical event vocabulary exactly once;
// downstream code never inspects native types.
package adapter

import (
	"context"
	"fmt"

	"github.com/aionlabs/aion/runtime/events"
)

type (
	// Config carries the per-turn runtime configuration.
	Config struct {
		// ContextID identifies the conversation thread the turn belongs to.
		ContextID string
		// Values holds runtime-specific configuration values.
		Values map[string]any
	}

	// Runtime is one supported agent runtime kind. Implementations wrap a
	// concrete executor (a compiled graph, a tool-calling loop) and surface
	// its native events without interpretation.
	Runtime interface {
		// Stream executes one conversational turn, invoking emit for every
		// native event in production order. Stream returns once the native
		// stream is exhausted, ctx is canceled, or emit returns an error
		// (consumer gone); in the latter cases iteration of the underlying
		// native source must stop promptly.
		Stream(ctx context.Context, inputs any, cfg Config, emit func(native any) error) error

		// State returns the authoritative final-state snapshot for the turn.
		// It is called exactly once, after Stream returns successfully.
		State(ctx context.Context, cfg Config) (Snapshot, error)
	}

	// Normalizer converts one native event into at most one canonical event.
	// Implementations must not panic on malformed input: unrecognized events
	// degrade to a Custom event carrying best-effort extracted fields, never
	// a silent drop without classification. A nil return means the native
	// event carries nothing (for example a nil payload).
	Normalizer interface {
		Normalize(ctx context.Context, native any) events.Event
	}

	// Snapshot is the unified final-state view extracted from a runtime
	// after a turn ends.
	Snapshot struct {
		// State holds the runtime state values keyed by state key.
		State map[string]any
		// RequiresInput reports whether the turn paused on an interrupt.
		RequiresInput bool
		// Interrupts lists pending interrupts when RequiresInput is true.
		Interrupts []events.InterruptInfo
		// Outbox is the authoritative end-of-turn payload placed into state
		// by agent logic, already decoded and validated. Nil when the state
		// carries no outbox or the payload failed validation.
		Outbox Outbox
	}
)

// StateKeyOutbox is the state key under which agent logic places the
// authoritative end-of-turn outbox payload.
const StateKeyOutbox = "a2a_outbox"

// SnapshotFromState assembles a Snapshot from a runtime's raw final-state
// map. The outbox payload, when present under StateKeyOutbox, is decoded and
// validated here so every runtime implementation shares the same decode-once
// boundary. A malformed outbox payload leaves Snapshot.Outbox nil and is
// reported through the returned error; the snapshot itself remains usable,
// so reconciliation falls through to the next-lower-priority rule.
func SnapshotFromState(state map[string]any, interrupts []events.InterruptInfo) (Snapshot, error) {
	snap := Snapshot{
		State:         state,
		RequiresInput: len(interrupts) > 0,
		Interrupts:    interrupts,
	}
	raw, ok := state[StateKeyOutbox]
	if !ok || raw == nil {
		return snap, nil
	}
	outbox, err := DecodeOutbox(raw)
	if err != nil {
		return snap, fmt.Errorf("decode outbox from state: %w", err)
	}
	snap.Outbox = outbox
	return snap, nil
}
