// Package loop normalizes native events produced by tool-calling loop
// runtimes. Loop runtimes emit a single event shape carrying a partial flag,
// ordered content parts, an author, optional function calls and responses,
// and an optional state delta. The normalizer maps each event onto at most
// one canonical execution event.
package loop

import (
	"context"
	"fmt"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/events"
	"github.com/aionlabs/aion/runtime/telemetry"
)

type (
	// Event is one native event emitted by a loop runtime.
	Event struct {
		// Partial reports whether the event is a streaming fragment of a
		// message still being produced.
		Partial bool
		// Author is the loop-native author ("user" or the agent name).
		Author string
		// Content holds the ordered content parts.
		Content []Part
		// Actions carries side effects attached to the event.
		Actions *Actions
	}

	// Part is one loop-native content part. Exactly one field is set.
	Part struct {
		// Text is plain text content.
		Text string
		// Data is structured content.
		Data map[string]any
		// File is file content.
		File *File
		// FunctionCall is a tool invocation request.
		FunctionCall *FunctionCall
		// FunctionResponse is a tool invocation result.
		FunctionResponse *FunctionResponse
	}

	// File is loop-native file content.
	File struct {
		// Name is the display file name.
		Name string
		// MIMEType is the content type.
		MIMEType string
		// URI references hosted content; set instead of Bytes.
		URI string
		// Bytes holds base64-encoded inline content; set instead of URI.
		Bytes string
	}

	// FunctionCall is a tool invocation requested by the model.
	FunctionCall struct {
		// ID identifies the call for response correlation.
		ID string
		// Name is the tool name.
		Name string
		// Args holds the invocation arguments.
		Args map[string]any
	}

	// FunctionResponse is the result of a tool invocation.
	FunctionResponse struct {
		// ID correlates the response with its call.
		ID string
		// Name is the tool name.
		Name string
		// Response holds the result payload.
		Response map[string]any
	}

	// Actions carries side effects attached to a loop event.
	Actions struct {
		// StateDelta is the state mutation proposed by the event. The
		// outbox, when present, travels under its well-known state key.
		StateDelta map[string]any
	}

	// Normalizer maps loop-native events onto the canonical vocabulary.
	// It never fails: unrecognized input degrades to a classified Custom
	// event.
	Normalizer struct {
		log telemetry.Logger
	}
)

const authorUser = "user"

// NewNormalizer returns a loop event normalizer. log may be nil.
func NewNormalizer(log telemetry.Logger) *Normalizer {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Normalizer{log: log}
}

// Normalize implements adapter.Normalizer.
//
// Classification order for complete events: message content wins over tool
// traffic, tool calls over tool responses, tool responses over state deltas.
// Loop runtimes emit these concerns as separate events in practice; the
// order only matters for defensively-handled mixed events.
func (n *Normalizer) Normalize(ctx context.Context, native any) events.Event {
	ev, ok := asEvent(native)
	if !ok {
		n.log.Warn(ctx, "unrecognized loop event", "type", fmt.Sprintf("%T", native))
		return &events.Custom{Type: events.CustomTypeUnknown, Data: native}
	}

	if ev.Partial {
		parts := contentParts(ev.Content)
		if len(parts) == 0 {
			return nil
		}
		return &events.MessageChunk{
			Parts: parts,
			Role:  normalizeRole(ev.Author),
		}
	}

	if parts := contentParts(ev.Content); len(parts) > 0 {
		return &events.MessageFull{Parts: parts, Role: normalizeRole(ev.Author)}
	}
	if calls := functionCalls(ev.Content); len(calls) > 0 {
		return &events.Custom{Type: events.CustomTypeToolCalls, Data: map[string]any{
			"tool_calls": calls,
		}}
	}
	if responses := functionResponses(ev.Content); len(responses) > 0 {
		return &events.Custom{Type: events.CustomTypeToolResponses, Data: map[string]any{
			"tool_responses": responses,
		}}
	}
	if ev.Actions != nil && len(ev.Actions.StateDelta) > 0 {
		// State mutations, the outbox under its well-known key included,
		// are session-only; the snapshot surfaces the outbox at end of turn.
		return &events.StateUpdate{Data: ev.Actions.StateDelta, Internal: true}
	}
	return nil
}

// contentParts maps displayable loop parts to protocol parts in source
// order. Function call and response parts are not message content and are
// skipped here.
func contentParts(parts []Part) []a2a.Part {
	var out []a2a.Part
	for _, part := range parts {
		switch {
		case part.FunctionCall != nil || part.FunctionResponse != nil:
			continue
		case part.Text != "":
			out = append(out, a2a.TextPart(part.Text))
		case part.File != nil:
			file := a2a.FileContent{
				Name:     part.File.Name,
				MIMEType: part.File.MIMEType,
				URI:      part.File.URI,
				Bytes:    part.File.Bytes,
			}
			if file.MIMEType == "" {
				file.MIMEType = "application/octet-stream"
			}
			out = append(out, a2a.FilePart(file))
		case part.Data != nil:
			out = append(out, a2a.DataPart(part.Data))
		}
	}
	return out
}

func functionCalls(parts []Part) []FunctionCall {
	var out []FunctionCall
	for _, part := range parts {
		if part.FunctionCall != nil {
			out = append(out, *part.FunctionCall)
		}
	}
	return out
}

func functionResponses(parts []Part) []FunctionResponse {
	var out []FunctionResponse
	for _, part := range parts {
		if part.FunctionResponse != nil {
			out = append(out, *part.FunctionResponse)
		}
	}
	return out
}

func normalizeRole(author string) a2a.Role {
	if author == authorUser {
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
