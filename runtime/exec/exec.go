// Package exec implements the execution event streaming and protocol
// translation engine: it drives one conversational turn against an agent
// runtime, converts the runtime's normalized event stream into ordered wire
// events, and reconciles the authoritative end-of-turn state with whatever
// was already streamed.
//
// The moving parts, in control-flow order:
//
//	Runtime -> Normalizer -> CycleExecutor -> Converter -> Reconciler -> Sink
//
// Every turn owns fresh CycleExecutor and Converter instances; turns share
// no mutable state and many turns across different conversations execute
// concurrently as independent goroutines. Wire events for a turn are emitted
// in the exact order canonical events arrive; nothing is reordered, dropped,
// or coalesced.
package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/adapter"
	"github.com/aionlabs/aion/runtime/events"
	"github.com/aionlabs/aion/runtime/session"
	"github.com/aionlabs/aion/runtime/telemetry"
)

type (
	// Turn identifies one execution cycle: the task being advanced and the
	// conversation context it belongs to. All wire events of the turn carry
	// these identifiers.
	Turn struct {
		// TaskID is the task advanced by this turn.
		TaskID string
		// ContextID is the conversation context of the task.
		ContextID string
	}

	// Executor drives complete turns. It owns the per-turn orchestration:
	// stream cycle, stream closing, final-state retrieval, reconciliation,
	// and the terminal event. The zero collaborators default to in-process
	// no-ops so the engine is usable without external infrastructure.
	//
	// An Executor is safe for concurrent use; all per-turn state lives in
	// turn-scoped values created inside ExecuteTurn.
	Executor struct {
		runtime adapter.Runtime
		norm    adapter.Normalizer
		sess    session.Store
		tasks   a2a.TaskStore
		log     telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
	}

	// ExecutorOption configures optional Executor collaborators.
	ExecutorOption func(*Executor)

	// RuntimeError wraps a failure raised by the agent runtime itself. The
	// turn is terminated with a failed status before the error is returned;
	// no error detail reaches the client.
	RuntimeError struct {
		// Err is the underlying runtime failure.
		Err error
	}
)

// ErrStateRetrieval marks a failure of the final-state snapshot call. No
// terminal wire event is synthesized on this path: the caller decides
// whether partial success is acceptable.
var ErrStateRetrieval = errors.New("final state retrieval failed")

// Error implements error.
func (e *RuntimeError) Error() string { return fmt.Sprintf("runtime execution failed: %v", e.Err) }

// Unwrap returns the underlying runtime failure.
func (e *RuntimeError) Unwrap() error { return e.Err }

// NewExecutor builds an executor for one runtime kind. The normalizer must
// match the runtime: it is the only component that understands the runtime's
// native event shapes.
func NewExecutor(rt adapter.Runtime, norm adapter.Normalizer, opts ...ExecutorOption) *Executor {
	e := &Executor{
		runtime: rt,
		norm:    norm,
		log:     telemetry.NoopLogger{},
		metrics: telemetry.NoopMetrics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithSessionStore configures the session collaborator that receives settled
// events during the stream cycle.
func WithSessionStore(store session.Store) ExecutorOption {
	return func(e *Executor) { e.sess = store }
}

// WithTaskStore configures the task store the reconciler mutates when outbox
// payloads arrive.
func WithTaskStore(store a2a.TaskStore) ExecutorOption {
	return func(e *Executor) { e.tasks = store }
}

// WithLogger configures structured logging.
func WithLogger(log telemetry.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// WithMetrics configures metric recording.
func WithMetrics(m telemetry.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer configures span creation around turns.
func WithTracer(t telemetry.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// ExecuteTurn runs one complete turn and sends the resulting ordered wire
// events to sink. It returns the stream result for callers that want the
// accumulated trailing state.
//
// Error semantics follow the engine's taxonomy: a runtime failure emits one
// failed terminal status and returns a RuntimeError; a sink failure (client
// gone) stops native iteration and returns the SinkError without synthetic
// terminal events, leaving an in-flight streaming artifact logically open; a
// final-state retrieval failure is returned wrapped in ErrStateRetrieval
// with no terminal event.
func (e *Executor) ExecuteTurn(ctx context.Context, turn Turn, inputs any, cfg adapter.Config, sink a2a.Sink) (StreamResult, error) {
	var span telemetry.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "aion.turn")
		defer span.End()
	}
	started := time.Now()

	conv := NewConverter(turn, e.log)
	cycle := NewCycleExecutor(e.runtime, e.norm, conv, e.sess, e.log)

	emit := func(ctx context.Context, ev a2a.Event) error {
		e.metrics.IncCounter(telemetry.MetricWireEvents, 1, "kind", string(ev.Kind()))
		return sink.Send(ctx, ev)
	}

	if err := cycle.Execute(ctx, inputs, cfg, emit); err != nil {
		var sinkErr *SinkError
		if errors.As(err, &sinkErr) || ctx.Err() != nil {
			// The consumer is gone or the turn was canceled: stop quietly.
			// Any open streaming artifact stays logically open; a
			// supervising layer may emit a synthetic close later.
			e.observeTurn(started, "canceled")
			return cycle.Result(), err
		}
		// Runtime execution failure: one failed terminal status, no detail
		// exposed, then re-raise so the outer system can record and alert.
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "runtime execution failed")
		}
		for _, ev := range conv.Convert(ctx, &events.Error{Message: err.Error(), Kind: "RuntimeExecutionError"}) {
			if emitErr := emit(ctx, ev); emitErr != nil {
				e.log.Warn(ctx, "failed to deliver terminal failure status", "error", emitErr)
				break
			}
		}
		e.observeTurn(started, "failed")
		return cycle.Result(), &RuntimeError{Err: err}
	}

	snap, err := e.runtime.State(ctx, cfg)
	if err != nil {
		e.observeTurn(started, "failed")
		return cycle.Result(), fmt.Errorf("%w: %w", ErrStateRetrieval, err)
	}

	result := cycle.Result()

	// Close the streaming artifact if the native stream ended mid-stream so
	// it is closed exactly once before reconciliation output.
	pending := conv.CloseStream()

	rec := NewReconciler(turn, e.tasks, e.log)
	reconciled, err := rec.Reconcile(ctx, result, snap)
	if err != nil {
		e.observeTurn(started, "failed")
		return result, err
	}

	var terminal []a2a.Event
	outcome := "completed"
	if snap.RequiresInput {
		terminal = conv.Convert(ctx, &events.Interrupt{Interrupts: snap.Interrupts})
		outcome = "paused"
	} else {
		terminal = conv.Convert(ctx, &events.Complete{})
	}

	for _, ev := range concatEvents(pending, reconciled, terminal) {
		if err := emit(ctx, ev); err != nil {
			e.observeTurn(started, "canceled")
			return result, &SinkError{Err: err}
		}
	}

	e.syncTaskStatus(ctx, turn, snap.RequiresInput)
	e.observeTurn(started, outcome)
	return result, nil
}

// syncTaskStatus records the terminal turn state on the stored task. Best
// effort: the wire sequence is authoritative and a store miss is not fatal.
func (e *Executor) syncTaskStatus(ctx context.Context, turn Turn, paused bool) {
	if e.tasks == nil {
		return
	}
	task, err := e.tasks.Load(ctx, turn.TaskID)
	if err != nil {
		if !errors.Is(err, a2a.ErrTaskNotFound) {
			e.log.Warn(ctx, "load task for status sync", "task_id", turn.TaskID, "error", err)
		}
		return
	}
	state := a2a.TaskStateCompleted
	if paused {
		state = a2a.TaskStateInputRequired
	}
	task.Status = a2a.NewStatus(state, nil)
	if err := e.tasks.Save(ctx, task); err != nil {
		e.log.Warn(ctx, "save task status", "task_id", turn.TaskID, "error", err)
	}
}

func (e *Executor) observeTurn(started time.Time, outcome string) {
	e.metrics.RecordTimer(telemetry.MetricTurnDuration, time.Since(started), "outcome", outcome)
}

func concatEvents(groups ...[]a2a.Event) []a2a.Event {
	var out []a2a.Event
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
