package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/session"
)

func TestStoreAppendAndHistory(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.AppendEvent(ctx, "c1", session.Event{ID: "e1", Kind: "message", Parts: []a2a.Part{a2a.TextPart("one")}}))
	require.NoError(t, store.AppendEvent(ctx, "c1", session.Event{ID: "e2", Kind: "state_update", Data: map[string]any{"k": "v"}}))
	require.NoError(t, store.AppendEvent(ctx, "c2", session.Event{ID: "e3", Kind: "message"}))

	history, err := store.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, []string{"e1", "e2"}, []string{history[0].ID, history[1].ID})
}

func TestStoreRequiresContextID(t *testing.T) {
	store := New()
	err := store.AppendEvent(context.Background(), "", session.Event{ID: "e1"})
	require.ErrorIs(t, err, session.ErrContextRequired)
	_, err = store.History(context.Background(), "")
	require.ErrorIs(t, err, session.ErrContextRequired)
}

func TestStoreMissingContextYieldsEmptyHistory(t *testing.T) {
	store := New()
	history, err := store.History(context.Background(), "absent")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestStoreDefensiveCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	ev := session.Event{ID: "e1", Kind: "message", Parts: []a2a.Part{a2a.TextPart("original")}, Data: map[string]any{"k": "v"}}
	require.NoError(t, store.AppendEvent(ctx, "c1", ev))

	ev.Parts[0].Text = "mutated"
	ev.Data["k"] = "mutated"

	history, err := store.History(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "original", history[0].Parts[0].Text)
	require.Equal(t, "v", history[0].Data["k"])

	history[0].Data["k"] = "mutated again"
	reread, err := store.History(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "v", reread[0].Data["k"])
}
