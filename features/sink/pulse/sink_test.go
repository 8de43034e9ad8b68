package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/aionlabs/aion/a2a"
	clientspulse "github.com/aionlabs/aion/features/sink/pulse/clients/pulse"
)

type fakeClient struct {
	stream    func(name string) (clientspulse.Stream, error)
	closeFunc func(ctx context.Context) error
}

func (c *fakeClient) Stream(name string, opts ...streamopts.Stream) (clientspulse.Stream, error) {
	return c.stream(name)
}

func (c *fakeClient) Close(ctx context.Context) error {
	if c.closeFunc != nil {
		return c.closeFunc(ctx)
	}
	return nil
}

type fakeStream struct {
	add func(ctx context.Context, event string, payload []byte) (string, error)
}

func (s *fakeStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	return s.add(ctx, event, payload)
}

func (s *fakeStream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStream) Destroy(ctx context.Context) error { return nil }

func statusUpdate() *a2a.StatusUpdateEvent {
	msg := a2a.NewMessage("task-123", "ctx-1", a2a.RoleAgent, []a2a.Part{a2a.TextPart("hello")})
	return &a2a.StatusUpdateEvent{
		TaskID:    "task-123",
		ContextID: "ctx-1",
		Status:    a2a.NewStatus(a2a.TaskStateWorking, &msg),
	}
}

func TestSendPublishesEnvelope(t *testing.T) {
	str := &fakeStream{}
	cli := &fakeClient{stream: func(name string) (clientspulse.Stream, error) {
		require.Equal(t, "task/task-123", name)
		return str, nil
	}}
	str.add = func(ctx context.Context, event string, payload []byte) (string, error) {
		require.Equal(t, string(a2a.EventKindStatusUpdate), event)
		var env envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		require.Equal(t, "task-123", env.TaskID)
		require.Equal(t, "ctx-1", env.ContextID)
		require.Equal(t, "status-update", env.Kind)
		require.False(t, env.Timestamp.IsZero())
		body, ok := env.Event.(map[string]any)
		require.True(t, ok)
		status, ok := body["status"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "working", status["state"])
		return "1-0", nil
	}

	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), statusUpdate()))
}

func TestSendRoundTripsThroughDecoder(t *testing.T) {
	str := &fakeStream{}
	cli := &fakeClient{stream: func(name string) (clientspulse.Stream, error) { return str, nil }}
	var captured []byte
	str.add = func(ctx context.Context, event string, payload []byte) (string, error) {
		captured = payload
		return "1-0", nil
	}

	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	original := &a2a.ArtifactUpdateEvent{
		TaskID:    "task-123",
		ContextID: "ctx-1",
		Artifact: a2a.Artifact{
			ArtifactID: a2a.ArtifactIDStreamDelta,
			Name:       a2a.ArtifactNameStreamDelta,
			Parts:      []a2a.Part{a2a.TextPart("chunk")},
		},
		Append: true,
	}
	require.NoError(t, sink.Send(context.Background(), original))

	decoded, err := DecodeEnvelope(captured)
	require.NoError(t, err)
	art, ok := decoded.(*a2a.ArtifactUpdateEvent)
	require.True(t, ok)
	require.Equal(t, original.Artifact.ArtifactID, art.Artifact.ArtifactID)
	require.True(t, art.Append)
	require.Equal(t, "chunk", a2a.Text(art.Artifact.Parts))
}

func TestCustomStreamID(t *testing.T) {
	str := &fakeStream{add: func(ctx context.Context, event string, payload []byte) (string, error) {
		return "1-0", nil
	}}
	cli := &fakeClient{stream: func(name string) (clientspulse.Stream, error) {
		require.Equal(t, "ctx/ctx-1", name)
		return str, nil
	}}
	sink, err := NewSink(Options{
		Client: cli,
		StreamID: func(ev a2a.Event) (string, error) {
			_, contextID := ev.Refs()
			return "ctx/" + contextID, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), statusUpdate()))
}

func TestSendRequiresTaskID(t *testing.T) {
	sink, err := NewSink(Options{Client: &fakeClient{}})
	require.NoError(t, err)
	err = sink.Send(context.Background(), &a2a.StatusUpdateEvent{})
	require.EqualError(t, err, "wire event missing task id")
}

func TestStreamCreationError(t *testing.T) {
	cli := &fakeClient{stream: func(name string) (clientspulse.Stream, error) {
		return nil, errors.New("boom")
	}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.EqualError(t, sink.Send(context.Background(), statusUpdate()), "boom")
}

func TestAddError(t *testing.T) {
	str := &fakeStream{add: func(ctx context.Context, event string, payload []byte) (string, error) {
		return "", errors.New("add-failed")
	}}
	cli := &fakeClient{stream: func(name string) (clientspulse.Stream, error) { return str, nil }}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.EqualError(t, sink.Send(context.Background(), statusUpdate()), "add-failed")
}

func TestNewSinkRequiresClient(t *testing.T) {
	_, err := NewSink(Options{})
	require.EqualError(t, err, "pulse client is required")
}

func TestCloseDelegates(t *testing.T) {
	called := false
	cli := &fakeClient{closeFunc: func(ctx context.Context) error {
		called = true
		return nil
	}}
	sink, err := NewSink(Options{Client: cli})
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
	require.True(t, called)
}

func TestDecodeEnvelopeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"kind":"mystery","event":{}}`))
	require.Error(t, err)
}
