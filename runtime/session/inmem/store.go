// Package inmem provides an in-memory implementation of session.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation backed by the runtime's own session
// service or an external store.
package inmem

import (
	"context"
	"sync"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/session"
)

// Store is an in-memory implementation of session.Store. It is safe for
// concurrent use and defensively copies events so callers cannot mutate
// stored history.
type Store struct {
	mu     sync.RWMutex
	events map[string][]session.Event
}

// New returns an empty Store.
func New() *Store {
	return &Store{events: make(map[string][]session.Event)}
}

// AppendEvent implements session.Store.
func (s *Store) AppendEvent(_ context.Context, contextID string, event session.Event) error {
	if contextID == "" {
		return session.ErrContextRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[contextID] = append(s.events[contextID], cloneEvent(event))
	return nil
}

// History implements session.Store.
func (s *Store) History(_ context.Context, contextID string) ([]session.Event, error) {
	if contextID == "" {
		return nil, session.ErrContextRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[contextID]
	out := make([]session.Event, len(events))
	for i, ev := range events {
		out[i] = cloneEvent(ev)
	}
	return out, nil
}

func cloneEvent(in session.Event) session.Event {
	out := in
	if len(in.Parts) > 0 {
		out.Parts = append([]a2a.Part(nil), in.Parts...)
	}
	if len(in.Data) > 0 {
		out.Data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			out.Data[k] = v
		}
	}
	return out
}
