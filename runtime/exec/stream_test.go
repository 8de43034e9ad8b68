package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/adapter"
	"github.com/aionlabs/aion/runtime/events"
	"github.com/aionlabs/aion/runtime/session"
	"github.com/aionlabs/aion/runtime/telemetry"
)

// fakeRuntime replays a fixed list of native events and returns the
// configured snapshot from State.
type fakeRuntime struct {
	natives   []any
	streamErr error
	snap      adapter.Snapshot
	stateErr  error
}

func (f *fakeRuntime) Stream(ctx context.Context, inputs any, cfg adapter.Config, emit func(native any) error) error {
	for _, native := range f.natives {
		if err := emit(native); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeRuntime) State(ctx context.Context, cfg adapter.Config) (adapter.Snapshot, error) {
	return f.snap, f.stateErr
}

// identityNormalizer passes canonical events through unchanged; test inputs
// are already canonical.
type identityNormalizer struct{}

func (identityNormalizer) Normalize(ctx context.Context, native any) events.Event {
	if ev, ok := native.(events.Event); ok {
		return ev
	}
	return nil
}

// recordingStore records append calls in order, interleaved with emissions
// via a shared journal.
type recordingStore struct {
	journal *[]string
	events  []session.Event
	err     error
}

func (s *recordingStore) AppendEvent(ctx context.Context, contextID string, ev session.Event) error {
	if s.err != nil {
		return s.err
	}
	*s.journal = append(*s.journal, "persist:"+ev.Kind)
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingStore) History(ctx context.Context, contextID string) ([]session.Event, error) {
	return s.events, nil
}

func runCycle(t *testing.T, rt adapter.Runtime, sess session.Store, journal *[]string) (*CycleExecutor, []a2a.Event, error) {
	t.Helper()
	conv := NewConverter(testTurn, nil)
	cycle := NewCycleExecutor(rt, identityNormalizer{}, conv, sess, nil)
	var emitted []a2a.Event
	err := cycle.Execute(context.Background(), nil, adapter.Config{ContextID: "ctx-1"}, func(ctx context.Context, ev a2a.Event) error {
		if journal != nil {
			*journal = append(*journal, "emit:"+string(ev.Kind()))
		}
		emitted = append(emitted, ev)
		return nil
	})
	return cycle, emitted, err
}

func TestCyclePersistsBeforeEmitting(t *testing.T) {
	var journal []string
	rt := &fakeRuntime{natives: []any{full("answer")}}
	store := &recordingStore{journal: &journal}

	_, emitted, err := runCycle(t, rt, store, &journal)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	require.Equal(t, []string{"persist:message", "emit:status-update"}, journal)
}

func TestCycleDoesNotPersistChunks(t *testing.T) {
	var journal []string
	rt := &fakeRuntime{natives: []any{chunk("a", false), chunk("b", false)}}
	store := &recordingStore{journal: &journal}

	_, emitted, err := runCycle(t, rt, store, &journal)
	require.NoError(t, err)
	require.Len(t, emitted, 2)
	require.Empty(t, store.events, "streaming chunks are transient")
}

func TestCycleAccumulatesStreamText(t *testing.T) {
	rt := &fakeRuntime{natives: []any{chunk("Hel", false), chunk("lo", false)}}
	cycle, _, err := runCycle(t, rt, nil, nil)
	require.NoError(t, err)

	res := cycle.Result()
	require.Equal(t, "Hello", res.AccumulatedText)
	require.False(t, res.HasFinalMessage)
}

func TestCycleTracksFinalMessage(t *testing.T) {
	rt := &fakeRuntime{natives: []any{chunk("Hel", false), full("Hello")}}
	cycle, _, err := runCycle(t, rt, nil, nil)
	require.NoError(t, err)

	res := cycle.Result()
	require.True(t, res.HasFinalMessage)
}

func TestCycleSinkErrorStopsIteration(t *testing.T) {
	rt := &fakeRuntime{natives: []any{full("one"), full("two")}}
	conv := NewConverter(testTurn, nil)
	cycle := NewCycleExecutor(rt, identityNormalizer{}, conv, nil, nil)

	calls := 0
	err := cycle.Execute(context.Background(), nil, adapter.Config{ContextID: "ctx-1"}, func(ctx context.Context, ev a2a.Event) error {
		calls++
		return errors.New("client gone")
	})
	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	require.Equal(t, 1, calls, "iteration stops after the first emit failure")
}

func TestCyclePersistFailureFailsTurn(t *testing.T) {
	var journal []string
	rt := &fakeRuntime{natives: []any{full("answer")}}
	store := &recordingStore{journal: &journal, err: errors.New("disk full")}

	_, emitted, err := runCycle(t, rt, store, &journal)
	require.Error(t, err)
	var sinkErr *SinkError
	require.False(t, errors.As(err, &sinkErr), "persistence failures are runtime failures")
	require.Empty(t, emitted, "nothing is emitted when persistence fails")
}

func TestCycleNodeUpdateRebindsContext(t *testing.T) {
	rt := &fakeRuntime{natives: []any{
		&events.NodeUpdate{NodeName: "planner"},
		full("planned"),
	}}
	conv := NewConverter(testTurn, nil)
	cycle := NewCycleExecutor(rt, identityNormalizer{}, conv, nil, nil)

	var node string
	err := cycle.Execute(context.Background(), nil, adapter.Config{ContextID: "ctx-1"}, func(ctx context.Context, ev a2a.Event) error {
		node = telemetry.ActiveNode(ctx)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "planner", node)
}

func TestCyclePersistsCustomAndStateEvents(t *testing.T) {
	var journal []string
	rt := &fakeRuntime{natives: []any{
		&events.Custom{Type: events.CustomTypeToolCalls, Data: map[string]any{"tool_calls": []any{"search"}}},
		&events.StateUpdate{Data: map[string]any{"progress": 1}},
	}}
	store := &recordingStore{journal: &journal}

	_, _, err := runCycle(t, rt, store, &journal)
	require.NoError(t, err)
	require.Len(t, store.events, 2)
	require.Equal(t, "tool_calls", store.events[0].Kind)
	require.Equal(t, "state_update", store.events[1].Kind)
	require.Equal(t, testTurn.TaskID, store.events[0].TaskID)
}
