// Package pulse exposes an a2a.Sink implementation that publishes wire
// events to goa.design/pulse streams. It mirrors the layering used by
// existing Pulse deployments: services build a Redis client, pass it to the
// Pulse client, and hand the resulting sink to the execution engine.
//
// Each turn's events land on a per-task stream so subscribers following one
// task replay its wire sequence in emission order.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/features/sink/pulse/clients/pulse"
)

type (
	// Options configures the Pulse sink.
	Options struct {
		// Client is the Pulse client used to publish events. Required.
		Client pulse.Client
		// StreamID derives the target Pulse stream from an event. Defaults
		// to `task/<taskID>`.
		StreamID func(a2a.Event) (string, error)
		// MarshalEnvelope allows overriding the envelope serialization
		// (primarily for tests).
		MarshalEnvelope func(envelope) ([]byte, error)
	}

	// Sink publishes wire events into Pulse streams. It delegates
	// serialization to the configured envelope marshaler.
	// Thread-safe for concurrent Send operations.
	Sink struct {
		client pulse.Client
		opts   sinkOptions
	}

	// sinkOptions holds internal configuration derived from Options.
	sinkOptions struct {
		streamID        func(a2a.Event) (string, error)
		marshalEnvelope func(envelope) ([]byte, error)
	}

	// envelope wraps wire events for transmission over Pulse streams.
	envelope struct {
		// Kind identifies the wire event shape.
		Kind string `json:"kind"`
		// TaskID links the event to its task.
		TaskID string `json:"taskId"` //nolint:tagliatelle
		// ContextID links the event to its conversation context.
		ContextID string `json:"contextId"` //nolint:tagliatelle
		// Timestamp records when the event was published (UTC).
		Timestamp time.Time `json:"timestamp"`
		// Event contains the wire event itself.
		Event any `json:"event"`
	}
)

// NewSink constructs a Pulse-backed wire event sink. The Client field in opts
// is required; StreamID and MarshalEnvelope default to the built-in
// implementations if not provided.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	cfg := sinkOptions{
		streamID:        defaultStreamID,
		marshalEnvelope: defaultMarshal,
	}
	if opts.StreamID != nil {
		cfg.streamID = opts.StreamID
	}
	if opts.MarshalEnvelope != nil {
		cfg.marshalEnvelope = opts.MarshalEnvelope
	}
	return &Sink{
		client: opts.Client,
		opts:   cfg,
	}, nil
}

// Send publishes the event to the derived Pulse stream. It derives the stream
// ID, wraps the event in an envelope, marshals it to JSON, and publishes it
// via the Pulse client. Thread-safe for concurrent calls.
func (s *Sink) Send(ctx context.Context, event a2a.Event) error {
	streamID, err := s.opts.streamID(event)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	taskID, contextID := event.Refs()
	env := envelope{
		Kind:      string(event.Kind()),
		TaskID:    taskID,
		ContextID: contextID,
		Timestamp: time.Now().UTC(),
		Event:     event,
	}
	payload, err := s.opts.marshalEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := handle.Add(ctx, env.Kind, payload); err != nil {
		return err
	}
	return nil
}

// Close releases resources owned by the sink. This delegates to the
// underlying Pulse client, which may or may not close the Redis connection
// depending on the client implementation.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// defaultStreamID derives the Pulse stream name from the event's task ID.
func defaultStreamID(event a2a.Event) (string, error) {
	taskID, _ := event.Refs()
	if taskID == "" {
		return "", errors.New("wire event missing task id")
	}
	return fmt.Sprintf("task/%s", taskID), nil
}

// defaultMarshal serializes an envelope to JSON.
func defaultMarshal(env envelope) ([]byte, error) {
	return json.Marshal(env)
}
