package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"
	"github.com/amoylab/skirmish/internal/registry"
	"github.com/amoylab/skirmish/internal/scenario"
	"github.com/amoylab/skirmish/internal/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// connection ids are UUIDs, as handed out by the WebSocket endpoint
var (
	connA = uuid.NewString()
	connB = uuid.NewString()
	connC = uuid.NewString()
)

type fakeFinder struct {
	scenarios map[string]*scenario.Scenario
	err       error
}

func (f *fakeFinder) Find(_ context.Context, id string) (*scenario.Scenario, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := scenario.ValidateID(id); err != nil {
		return nil, err
	}
	sc, ok := f.scenarios[id]
	if !ok {
		return nil, scenario.ErrNotFound
	}
	return sc, nil
}

type countingObserver struct {
	delivered map[string]int
	missed    map[string]int
	ops       map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{delivered: map[string]int{}, missed: map[string]int{}, ops: map[string]int{}}
}

func (o *countingObserver) Notified(event string, delivered bool) {
	if delivered {
		o.delivered[event]++
	} else {
		o.missed[event]++
	}
}

func (o *countingObserver) SessionOpDone(op string, _ time.Time, _ error) { o.ops[op]++ }

type harness struct {
	t          *testing.T
	m          *Manager
	reg        *registry.Registry
	store      state.Store
	keys       state.Keys
	finder     *fakeFinder
	scenarioID string
	mr         *miniredis.Miniredis
}

func newHarness(t *testing.T, store state.Store) *harness {
	t.Helper()
	sc := &scenario.Scenario{ID: uuid.NewString(), Name: "Bridgehead"}
	finder := &fakeFinder{scenarios: map[string]*scenario.Scenario{sc.ID: sc}}
	reg := registry.New(zap.NewNop())
	keys := state.NewKeys("test")
	fanout := NewFanout(zap.NewNop(), reg, nil)
	return &harness{
		t:          t,
		m:          NewManager(zap.NewNop(), store, keys, finder, fanout, nil),
		reg:        reg,
		store:      store,
		keys:       keys,
		finder:     finder,
		scenarioID: sc.ID,
	}
}

// eachStore runs fn against the memory store and a miniredis-backed Redis store
func eachStore(t *testing.T, fn func(t *testing.T, h *harness)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newHarness(t, state.NewMemoryStore(zap.NewNop())))
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := state.NewRedisStore(zap.NewNop(), config.StoreRedisConfig{
			ClusterType: cnst.RedisClusterTypeSingle,
			Addr:        mr.Addr(),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		h := newHarness(t, store)
		h.mr = mr
		fn(t, h)
	})
}

func (h *harness) connect(id string) *registry.Outbox {
	o := registry.NewOutbox()
	h.reg.Register(id, o)
	return o
}

// received pops everything currently queued on o
func (h *harness) received(o *registry.Outbox) []Envelope {
	h.t.Helper()
	var out []Envelope
	for o.Len() > 0 {
		msg, ok := o.Pop(context.Background())
		require.True(h.t, ok)
		var env Envelope
		require.NoError(h.t, json.Unmarshal(msg, &env))
		out = append(out, env)
	}
	return out
}

func decode[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func (h *harness) members(sessionID string) []string {
	h.t.Helper()
	m, err := h.m.Members(context.Background(), sessionID)
	require.NoError(h.t, err)
	return m
}

func (h *harness) exists(key string) bool {
	h.t.Helper()
	ok, err := h.store.Exists(context.Background(), key)
	require.NoError(h.t, err)
	return ok
}
