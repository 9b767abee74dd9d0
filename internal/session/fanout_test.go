package session

import (
	"encoding/json"
	"testing"

	"github.com/amoylab/skirmish/internal/registry"
	"github.com/amoylab/skirmish/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMemory() state.Store { return state.NewMemoryStore(zap.NewNop()) }

func TestEncode(t *testing.T) {
	msg, err := Encode(GameEnded{SessionID: "s", WinnerID: "w", Reason: "r"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game_ended","payload":{"session_id":"s","winner_id":"w","reason":"r"}}`, string(msg))

	msg, err = Encode(SessionReady{SessionID: "s", Player2: "b"})
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, EventSessionReady, env.Type)
}

func TestFanout_BroadcastDedupesAndCountsMisses(t *testing.T) {
	reg := registry.New(zap.NewNop())
	a, b := registry.NewOutbox(), registry.NewOutbox()
	reg.Register("A", a)
	reg.Register("B", b)
	obs := newCountingObserver()
	f := NewFanout(zap.NewNop(), reg, obs)

	n := f.Broadcast([]string{"A", "B", "A", "", "gone"}, GameStarted{SessionID: "s"})
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 2, obs.delivered[EventGameStarted])
	assert.Equal(t, 1, obs.missed[EventGameStarted])
}

func TestFanout_Notify(t *testing.T) {
	reg := registry.New(zap.NewNop())
	a := registry.NewOutbox()
	reg.Register("A", a)
	f := NewFanout(zap.NewNop(), reg, nil)

	assert.True(t, f.Notify("A", GameStarted{SessionID: "s"}))
	assert.False(t, f.Notify("B", GameStarted{SessionID: "s"}))
	assert.False(t, f.Notify("", GameStarted{SessionID: "s"}))

	a.Close()
	assert.False(t, f.Notify("A", GameStarted{SessionID: "s"}), "closed outbox is a silent miss")
}
