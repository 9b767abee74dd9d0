package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amoylab/skirmish/internal/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCreateGetRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a := h.connect(connA)

		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		_, err = uuid.Parse(id)
		require.NoError(t, err)

		got, err := h.m.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.SessionID)
		assert.Equal(t, h.scenarioID, got.ScenarioID)
		assert.Equal(t, "Bridgehead", got.ScenarioName)
		assert.Equal(t, StateIdle, got.State)
		assert.Equal(t, connA, got.Player1)
		assert.Empty(t, got.Player2)
		assert.NotEmpty(t, got.CreatedAt)

		assert.Equal(t, []string{connA}, h.members(id))
		assert.Empty(t, h.received(a), "create sends no notification")

		list, err := h.m.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, *got, list[0])
	})
}

func TestCreateSession_Errors(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		_, err := h.m.CreateSession(ctx, "64b7f0c2e4b0a1a2b3c4d5e6", connA)
		assert.ErrorIs(t, err, ErrInvalidReference)

		_, err = h.m.CreateSession(ctx, uuid.NewString(), connA)
		assert.ErrorIs(t, err, ErrScenarioNotFound)

		_, err = h.m.CreateSession(ctx, h.scenarioID, " ")
		assert.ErrorIs(t, err, ErrInvalidInput)

		h.finder.err = errors.New("db down")
		_, err = h.m.CreateSession(ctx, h.scenarioID, connA)
		assert.ErrorIs(t, err, ErrStoreUnavailable)

		list, err := h.m.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestJoin_NotifiesPlayer1AndThirdPlayerConflicts(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a, b, c := h.connect(connA), h.connect(connB), h.connect(connC)

		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))

		envs := h.received(a)
		require.Len(t, envs, 1)
		assert.Equal(t, EventSessionReady, envs[0].Type)
		assert.Equal(t, SessionReady{SessionID: id, Player2: connB}, decode[SessionReady](t, envs[0]))
		assert.Empty(t, h.received(b))

		err = h.m.JoinSession(ctx, id, connC)
		assert.ErrorIs(t, err, ErrSessionFull)
		assert.Empty(t, h.received(c))

		got, err := h.m.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateProgressing, got.State)
		assert.Equal(t, connA, got.Player1)
		assert.Equal(t, connB, got.Player2)
		assert.ElementsMatch(t, []string{connA, connB}, h.members(id))
	})
}

func TestJoin_ProgressingNeverMutates(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		before, err := h.store.HGetAll(ctx, h.keys.Session(id))
		require.NoError(t, err)

		for _, who := range []string{connC, connB, connA} {
			err := h.m.JoinSession(ctx, id, who)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSessionFull) || errors.Is(err, ErrSessionNotJoinable))
		}

		after, err := h.store.HGetAll(ctx, h.keys.Session(id))
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Len(t, h.members(id), 2)
	})
}

func TestJoin_NotJoinableWithoutPlayer2(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.store.HSet(ctx, h.keys.Session(id), map[string]string{fieldState: string(StateProgressing)}))

		err = h.m.JoinSession(ctx, id, connB)
		assert.ErrorIs(t, err, ErrSessionNotJoinable)
	})
}

func TestJoin_InputErrors(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		assert.ErrorIs(t, h.m.JoinSession(ctx, uuid.NewString(), connB), ErrSessionNotFound)
		assert.ErrorIs(t, h.m.JoinSession(ctx, "", connB), ErrInvalidInput)

		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		assert.ErrorIs(t, h.m.JoinSession(ctx, id, connA), ErrInvalidInput)
		assert.ErrorIs(t, h.m.JoinSession(ctx, id, ""), ErrInvalidInput)
		assert.Equal(t, []string{connA}, h.members(id))
	})
}

func TestJoin_ConcurrentFirstWriterWins(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a := h.connect(connA)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)

		const n = 16
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = h.m.JoinSession(ctx, id, uuid.NewString())
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrSessionFull)
		}
		assert.Equal(t, 1, wins)

		got, err := h.m.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Len(t, h.members(id), 2)
		assert.Contains(t, h.members(id), got.Player2)
		assert.Len(t, h.received(a), 1)
	})
}

func TestDisconnect_Player1BeforeJoin(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a := h.connect(connA)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)

		require.NoError(t, h.m.OnDisconnect(ctx, connA))

		_, err = h.m.GetSession(ctx, id)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.False(t, h.exists(h.keys.Session(id)))
		assert.False(t, h.exists(h.keys.Members(id)))
		assert.False(t, h.exists(h.keys.ConnSessions(connA)))
		assert.Empty(t, h.received(a))

		list, err := h.m.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestDisconnect_OpponentWins(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a, b := h.connect(connA), h.connect(connB)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		h.received(a)

		h.reg.Unregister(connB)
		require.NoError(t, h.m.OnDisconnect(ctx, connB))

		envs := h.received(a)
		require.Len(t, envs, 1)
		assert.Equal(t, EventGameEnded, envs[0].Type)
		assert.Equal(t, GameEnded{SessionID: id, WinnerID: connA, Reason: ReasonOpponentDisconnected}, decode[GameEnded](t, envs[0]))
		assert.Empty(t, h.received(b))

		_, err = h.m.GetSession(ctx, id)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.False(t, h.exists(h.keys.Members(id)))
		assert.False(t, h.exists(h.keys.ConnSessions(connA)))
		assert.False(t, h.exists(h.keys.ConnSessions(connB)))

		// the winner leaving later changes nothing
		require.NoError(t, h.m.OnDisconnect(ctx, connA))
		assert.Empty(t, h.received(a))
	})
}

func TestDisconnect_Idempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a := h.connect(connA)
		h.connect(connB)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		h.received(a)

		require.NoError(t, h.m.OnDisconnect(ctx, connB))
		require.Len(t, h.received(a), 1)

		require.NoError(t, h.m.OnDisconnect(ctx, connB))
		require.NoError(t, h.m.OnDisconnect(ctx, uuid.NewString()))
		assert.Empty(t, h.received(a))
	})
}

func TestDisconnect_CancelledContextStillCleansUp(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		id, err := h.m.CreateSession(context.Background(), h.scenarioID, connA)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, h.m.OnDisconnect(ctx, connA))
		assert.False(t, h.exists(h.keys.Session(id)))
	})
}

func TestDisconnect_MembershipNotCaughtUp(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		b := h.connect(connB)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		// player 2 claimed the slot but its membership write has not landed
		require.NoError(t, h.store.HSet(ctx, h.keys.Session(id), map[string]string{
			fieldState:   string(StateProgressing),
			fieldPlayer2: connB,
		}))

		require.NoError(t, h.m.OnDisconnect(ctx, connA))

		envs := h.received(b)
		require.Len(t, envs, 1)
		assert.Equal(t, connB, decode[GameEnded](t, envs[0]).WinnerID)
		assert.False(t, h.exists(h.keys.Session(id)))
	})
}

func TestDisconnect_SeveralSessions(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		b, c := h.connect(connB), h.connect(connC)
		s1, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		s2, err := h.m.CreateSession(ctx, h.scenarioID, connC)
		require.NoError(t, err)
		s3, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, s1, connB))
		require.NoError(t, h.m.JoinSession(ctx, s2, connA))
		h.received(c)

		require.NoError(t, h.m.OnDisconnect(ctx, connA))

		assert.Len(t, h.received(b), 1)
		assert.Len(t, h.received(c), 1)
		for _, id := range []string{s1, s2, s3} {
			_, err := h.m.GetSession(ctx, id)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		}
	})
}

func TestStartGame(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a := h.connect(connA)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		h.received(a)

		// B is a member but not registered
		n, err := h.m.StartGame(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		envs := h.received(a)
		require.Len(t, envs, 1)
		assert.Equal(t, EventGameStarted, envs[0].Type)
		assert.Equal(t, GameStarted{SessionID: id}, decode[GameStarted](t, envs[0]))

		got, err := h.m.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateProgressing, got.State)

		_, err = h.m.StartGame(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestCloseSession(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a, b := h.connect(connA), h.connect(connB)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		h.received(a)

		n, err := h.m.CloseSession(ctx, id, "host left")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		for _, o := range []interface{ Len() int }{a, b} {
			assert.Equal(t, 1, o.Len())
		}
		ended := decode[GameEnded](t, h.received(b)[0])
		assert.Equal(t, GameEnded{SessionID: id, Reason: "host left"}, ended)

		assert.False(t, h.exists(h.keys.Session(id)))
		assert.False(t, h.exists(h.keys.Members(id)))
		assert.False(t, h.exists(h.keys.ConnSessions(connA)))

		n, err = h.m.CloseSession(ctx, id, "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestCloseSession_DefaultReason(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a := h.connect(connA)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)

		n, err := h.m.CloseSession(ctx, id, "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, ReasonSessionClosed, decode[GameEnded](t, h.received(a)[0]).Reason)
	})
}

func TestEndGame(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a, b := h.connect(connA), h.connect(connB)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		h.received(a)

		_, err = h.m.EndGame(ctx, id, connC, "victory")
		assert.ErrorIs(t, err, ErrInvalidInput)

		n, err := h.m.EndGame(ctx, id, connB, "objective captured")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, GameEnded{SessionID: id, WinnerID: connB, Reason: "objective captured"},
			decode[GameEnded](t, h.received(a)[0]))
		assert.Len(t, h.received(b), 1)

		_, err = h.m.EndGame(ctx, id, connB, "again")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestListSessions_SkipsStaleIndex(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.store.SAdd(ctx, h.keys.Sessions(), "ghost"))

		list, err := h.m.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].SessionID)
	})
}

func TestMembershipBoundedByPlayerSlots(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = h.m.JoinSession(ctx, id, uuid.NewString())
			}()
		}
		wg.Wait()

		got, err := h.m.GetSession(ctx, id)
		require.NoError(t, err)
		members := h.members(id)
		assert.LessOrEqual(t, len(members), 2)
		assert.ElementsMatch(t, []string{got.Player1, got.Player2}, members)
	})
}

func TestStoreUnavailable(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		if h.mr == nil {
			t.Skip("memory store cannot fail")
		}
		h.mr.Close()
		ctx := context.Background()

		_, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		_, err = h.m.GetSession(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		_, err = h.m.ListSessions(ctx)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorIs(t, h.m.OnDisconnect(ctx, connA), ErrStoreUnavailable)
	})
}

func TestManager_ReportsOperations(t *testing.T) {
	obs := newCountingObserver()
	h := newHarness(t, newMemory())
	fanout := NewFanout(zap.NewNop(), h.reg, obs)
	h.m = NewManager(zap.NewNop(), h.store, h.keys, h.finder, fanout, obs)
	ctx := context.Background()
	h.connect(connA)

	id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
	require.NoError(t, err)
	require.NoError(t, h.m.JoinSession(ctx, id, connB))
	_, err = h.m.StartGame(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.ops["create"])
	assert.Equal(t, 1, obs.ops["join"])
	assert.Equal(t, 1, obs.ops["start_game"])
	assert.Equal(t, 1, obs.delivered[EventSessionReady])
	assert.Equal(t, 1, obs.delivered[EventGameStarted])
	assert.Equal(t, 1, obs.missed[EventGameStarted])
}

func TestMalformedIDsAreRejected(t *testing.T) {
	eachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		a, _ := h.connect(connA), h.connect(connB)
		id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
		require.NoError(t, err)
		require.NoError(t, h.m.JoinSession(ctx, id, connB))
		h.received(a)

		for _, bad := range []string{
			id + ":members",
			"urn:uuid:" + id,
			"{" + id + "}",
			"not-a-session",
			"",
		} {
			_, err := h.m.CloseSession(ctx, bad, "")
			assert.ErrorIs(t, err, ErrInvalidInput, bad)
			_, err = h.m.EndGame(ctx, bad, connA, "")
			assert.ErrorIs(t, err, ErrInvalidInput, bad)
			_, err = h.m.StartGame(ctx, bad)
			assert.ErrorIs(t, err, ErrInvalidInput, bad)
			_, err = h.m.GetSession(ctx, bad)
			assert.ErrorIs(t, err, ErrInvalidInput, bad)
			_, err = h.m.Members(ctx, bad)
			assert.ErrorIs(t, err, ErrInvalidInput, bad)
			assert.ErrorIs(t, h.m.JoinSession(ctx, bad, connC), ErrInvalidInput, bad)
			assert.ErrorIs(t, h.m.OnDisconnect(ctx, bad), ErrInvalidInput, bad)
		}

		_, err = h.m.CreateSession(ctx, h.scenarioID, connA+":sessions")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, h.m.JoinSession(ctx, id, "player-two"), ErrInvalidInput)

		// the live session is untouched
		got, err := h.m.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateProgressing, got.State)
		assert.Equal(t, connA, got.Player1)
		assert.Equal(t, connB, got.Player2)
		assert.ElementsMatch(t, []string{connA, connB}, h.members(id))
		assert.Empty(t, h.received(a))
	})
}

// existsFailingStore fails every Exists call and delegates the rest
type existsFailingStore struct {
	state.Store
}

func (existsFailingStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func TestJoinSession_WarnsWhenRecheckFails(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newHarness(t, existsFailingStore{Store: newMemory()})
	h.m = NewManager(zap.New(core), h.store, h.keys, h.finder, NewFanout(zap.NewNop(), h.reg, nil), nil)
	ctx := context.Background()
	a := h.connect(connA)

	id, err := h.m.CreateSession(ctx, h.scenarioID, connA)
	require.NoError(t, err)
	require.NoError(t, h.m.JoinSession(ctx, id, connB))

	warned := logs.FilterMessage("failed to re-check session after join").All()
	require.Len(t, warned, 1)
	assert.Equal(t, id, warned[0].ContextMap()["session_id"])
	assert.Equal(t, "connection reset", warned[0].ContextMap()["error"])

	// the join itself still completes
	got, err := h.m.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, connB, got.Player2)
	envs := h.received(a)
	require.Len(t, envs, 1)
	assert.Equal(t, EventSessionReady, envs[0].Type)
}
