// Package session defines the conversation history collaborator. The stream
// cycle executor persists settled (non-chunk) events here before the
// corresponding wire events are emitted, so a crash between persistence and
// emission never leaves the client believing in a turn that history missed.
//
// One logical turn runs per conversation at a time; concurrent resumes on the
// same conversation must be serialized by the store implementation.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/aionlabs/aion/a2a"
)

type (
	// Event is one settled conversation event. It captures the durable
	// content of a canonical execution event; transient streaming chunks are
	// never persisted.
	Event struct {
		// ID is the unique event identifier.
		ID string
		// TaskID is the task the event was produced under.
		TaskID string
		// Kind is the canonical event kind ("message", "state_update",
		// "tool_calls", ...).
		Kind string
		// Role is the author role for message events.
		Role a2a.Role
		// Parts holds message content for message events.
		Parts []a2a.Part
		// Data holds structured payloads for non-message events.
		Data map[string]any
		// Timestamp records when the event settled.
		Timestamp time.Time
	}

	// Store persists conversation history keyed by context id.
	//
	// Implementations must be durable where the deployment requires it;
	// failures surface to the caller so the turn can fail fast rather than
	// silently losing history.
	Store interface {
		// AppendEvent appends a settled event to the context's history.
		AppendEvent(ctx context.Context, contextID string, event Event) error
		// History returns the ordered event history for the context. A
		// missing context yields an empty history, not an error.
		History(ctx context.Context, contextID string) ([]Event, error)
	}
)

// ErrContextRequired indicates a store call without a context id.
var ErrContextRequired = errors.New("context id is required")
