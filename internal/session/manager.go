package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/scenario"
	"github.com/amoylab/skirmish/internal/state"
	"github.com/amoylab/skirmish/pkg/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Manager drives the session state machine. It keeps no state of its own:
// records live in the state store and reachability in the registry behind
// the fanout.
//
// Mutations are short ordered sequences of store commands. Only the join
// claim is atomic; the membership and index updates that follow it are
// separate commands, so readers must accept a progressing record whose
// membership set has not caught up yet.
type Manager struct {
	logger    *zap.Logger
	store     state.Store
	keys      state.Keys
	scenarios scenario.Finder
	fanout    *Fanout
	observer  Observer
	now       func() time.Time
}

// NewManager creates a session manager. observer may be nil.
func NewManager(logger *zap.Logger, store state.Store, keys state.Keys, scenarios scenario.Finder, fanout *Fanout, observer Observer) *Manager {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Manager{
		logger:    logger.Named("session.manager"),
		store:     store,
		keys:      keys,
		scenarios: scenarios,
		fanout:    fanout,
		observer:  observer,
		now:       time.Now,
	}
}

// CreateSession opens an idle session for scenarioID with requester as player 1
func (m *Manager) CreateSession(ctx context.Context, scenarioID, requester string) (id string, err error) {
	defer m.done("create", time.Now(), &err)
	scope := trace.Tracer(cnst.TraceSession).Start(ctx, cnst.SpanSessionCreate).
		WithAttrs(attribute.String(cnst.AttrScenarioID, scenarioID))
	defer scope.End()
	ctx = scope.Ctx

	if err := checkID("user_id", requester); err != nil {
		return "", err
	}

	sc, err := m.scenarios.Find(ctx, scenarioID)
	if err != nil {
		switch {
		case errors.Is(err, scenario.ErrInvalidID):
			return "", fmt.Errorf("%w: %q", ErrInvalidReference, scenarioID)
		case errors.Is(err, scenario.ErrNotFound):
			return "", fmt.Errorf("%w: %s", ErrScenarioNotFound, scenarioID)
		default:
			return "", storeErr(fmt.Errorf("failed to resolve scenario: %w", err))
		}
	}

	rec := &Record{
		ID:           uuid.NewString(),
		ScenarioID:   sc.ID,
		ScenarioName: sc.Name,
		State:        StateIdle,
		Player1:      requester,
		CreatedAt:    m.now(),
	}
	if err := m.store.HSet(ctx, m.keys.Session(rec.ID), rec.fields()); err != nil {
		return "", storeErr(err)
	}
	if err := m.addMember(ctx, rec.ID, requester); err != nil {
		return "", err
	}
	if err := m.store.SAdd(ctx, m.keys.Sessions(), rec.ID); err != nil {
		return "", storeErr(err)
	}

	scope.WithAttrs(attribute.String(cnst.AttrSessionID, rec.ID))
	m.logger.Info("session created",
		zap.String("session_id", rec.ID),
		zap.String("scenario_id", rec.ScenarioID),
		zap.String("player1", requester))
	return rec.ID, nil
}

// JoinSession claims the player 2 slot of an idle session. Concurrent joins
// are settled first-writer-wins; losers get the error the winner's write
// implies.
func (m *Manager) JoinSession(ctx context.Context, sessionID, requester string) (err error) {
	defer m.done("join", time.Now(), &err)
	scope := trace.Tracer(cnst.TraceSession).Start(ctx, cnst.SpanSessionJoin).
		WithAttrs(attribute.String(cnst.AttrSessionID, sessionID))
	defer scope.End()
	ctx = scope.Ctx

	if err := checkID("user_id", requester); err != nil {
		return err
	}

	rec, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := joinable(rec, requester); err != nil {
		return err
	}

	claimed, err := m.store.HSetIfMatch(ctx, m.keys.Session(sessionID),
		map[string]string{fieldState: string(StateIdle), fieldPlayer2: ""},
		map[string]string{fieldState: string(StateProgressing), fieldPlayer2: requester},
	)
	if errors.Is(err, state.ErrKeyNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return storeErr(err)
	}
	if !claimed {
		// lost the race, report what the winner left behind
		rec, err := m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := joinable(rec, requester); err != nil {
			return err
		}
		return ErrSessionNotJoinable
	}

	if err := m.addMember(ctx, sessionID, requester); err != nil {
		return err
	}
	// a close or disconnect may have purged the session between the claim and
	// the membership write; drop what we just re-created
	ok, err := m.store.Exists(ctx, m.keys.Session(sessionID))
	if err != nil {
		m.logger.Warn("failed to re-check session after join",
			zap.String("session_id", sessionID),
			zap.Error(err))
	} else if !ok {
		m.removeMember(ctx, sessionID, requester)
		return ErrSessionNotFound
	}

	m.fanout.Notify(rec.Player1, SessionReady{SessionID: sessionID, Player2: requester})
	m.logger.Info("session joined",
		zap.String("session_id", sessionID),
		zap.String("player1", rec.Player1),
		zap.String("player2", requester))
	return nil
}

func joinable(rec *Record, requester string) error {
	if rec.Player2 != "" {
		return ErrSessionFull
	}
	if rec.State != StateIdle {
		return ErrSessionNotJoinable
	}
	if rec.Player1 == requester {
		return fmt.Errorf("%w: requester already holds player 1", ErrInvalidInput)
	}
	return nil
}

// StartGame notifies every live member that the game started. State is left
// as is. Returns the number of connections notified.
func (m *Manager) StartGame(ctx context.Context, sessionID string) (notified int, err error) {
	defer m.done("start_game", time.Now(), &err)
	scope := trace.Tracer(cnst.TraceSession).Start(ctx, cnst.SpanSessionStartGame).
		WithAttrs(attribute.String(cnst.AttrSessionID, sessionID))
	defer func() {
		scope.WithAttrs(attribute.Int(cnst.AttrNotified, notified)).End()
	}()
	ctx = scope.Ctx

	rec, err := m.load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	targets, err := m.targets(ctx, rec)
	if err != nil {
		return 0, err
	}

	notified = m.fanout.Broadcast(targets, GameStarted{SessionID: sessionID})
	m.logger.Info("game started", zap.String("session_id", sessionID), zap.Int("notified", notified))
	return notified, nil
}

// CloseSession ends the session without a winner and deletes it. Closing an
// absent session is not an error.
func (m *Manager) CloseSession(ctx context.Context, sessionID, reason string) (notified int, err error) {
	defer m.done("close", time.Now(), &err)
	scope := trace.Tracer(cnst.TraceSession).Start(ctx, cnst.SpanSessionClose).
		WithAttrs(attribute.String(cnst.AttrSessionID, sessionID))
	defer func() {
		scope.WithAttrs(attribute.Int(cnst.AttrNotified, notified)).End()
	}()
	ctx = scope.Ctx

	if reason == "" {
		reason = ReasonSessionClosed
	}

	rec, err := m.load(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return 0, err
	}
	if rec == nil {
		rec = &Record{ID: sessionID}
	}
	targets, err := m.targets(ctx, rec)
	if err != nil {
		return 0, err
	}

	notified = m.fanout.Broadcast(targets, GameEnded{SessionID: sessionID, Reason: reason})
	if err := m.purge(ctx, sessionID, append(targets, rec.players()...)); err != nil {
		return notified, err
	}
	m.logger.Info("session closed",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Int("notified", notified))
	return notified, nil
}

// EndGame closes a session with a declared winner, who must be one of its players
func (m *Manager) EndGame(ctx context.Context, sessionID, winner, reason string) (notified int, err error) {
	defer m.done("end_game", time.Now(), &err)
	scope := trace.Tracer(cnst.TraceSession).Start(ctx, cnst.SpanSessionEndGame).
		WithAttrs(attribute.String(cnst.AttrSessionID, sessionID))
	defer func() {
		scope.WithAttrs(attribute.Int(cnst.AttrNotified, notified)).End()
	}()
	ctx = scope.Ctx

	rec, err := m.load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if winner == "" || (winner != rec.Player1 && winner != rec.Player2) {
		return 0, fmt.Errorf("%w: winner %q is not a player of session %s", ErrInvalidInput, winner, sessionID)
	}
	targets, err := m.targets(ctx, rec)
	if err != nil {
		return 0, err
	}

	notified = m.fanout.Broadcast(targets, GameEnded{SessionID: sessionID, WinnerID: winner, Reason: reason})
	if err := m.purge(ctx, sessionID, append(targets, rec.players()...)); err != nil {
		return notified, err
	}
	m.logger.Info("game ended",
		zap.String("session_id", sessionID),
		zap.String("winner", winner),
		zap.Int("notified", notified))
	return notified, nil
}

// OnDisconnect removes connID from every session it belongs to. A remaining
// opponent is declared winner and the session is closed; an emptied session
// is deleted. It ignores ctx cancellation so cleanup always finishes, and it
// is safe to call more than once.
func (m *Manager) OnDisconnect(ctx context.Context, connID string) (err error) {
	defer m.done("disconnect", time.Now(), &err)
	ctx = context.WithoutCancel(ctx)
	scope := trace.Tracer(cnst.TraceSession).Start(ctx, cnst.SpanSessionDisconnect).
		WithAttrs(attribute.String(cnst.AttrConnectionID, connID))
	defer scope.End()
	ctx = scope.Ctx

	if err := checkID("connection id", connID); err != nil {
		return err
	}
	sessionIDs, err := m.store.SMembers(ctx, m.keys.ConnSessions(connID))
	if err != nil {
		return storeErr(err)
	}

	var errs []error
	for _, sid := range sessionIDs {
		if err := m.leave(ctx, sid, connID); err != nil {
			m.logger.Error("failed to clean up session on disconnect",
				zap.String("session_id", sid),
				zap.String("connection_id", connID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := m.store.Del(ctx, m.keys.ConnSessions(connID)); err != nil {
		return storeErr(err)
	}
	if len(sessionIDs) > 0 {
		m.logger.Info("connection left sessions",
			zap.String("connection_id", connID),
			zap.Strings("sessions", sessionIDs))
	}
	return nil
}

func (m *Manager) leave(ctx context.Context, sessionID, connID string) error {
	if err := m.store.SRem(ctx, m.keys.Members(sessionID), connID); err != nil {
		return storeErr(err)
	}
	remaining, err := m.store.SMembers(ctx, m.keys.Members(sessionID))
	if err != nil {
		return storeErr(err)
	}
	h, err := m.store.HGetAll(ctx, m.keys.Session(sessionID))
	if err != nil {
		return storeErr(err)
	}
	rec, ok := recordFromHash(sessionID, h)

	// player 2's membership add may still be in flight after its claim
	if len(remaining) == 0 && ok && rec.State == StateProgressing {
		if other := rec.opponent(connID); other != "" {
			remaining = []string{other}
		}
	}

	if len(remaining) == 1 {
		m.fanout.Notify(remaining[0], GameEnded{
			SessionID: sessionID,
			WinnerID:  remaining[0],
			Reason:    ReasonOpponentDisconnected,
		})
	}

	members := append([]string{connID}, remaining...)
	if ok {
		members = append(members, rec.players()...)
	}
	return m.purge(ctx, sessionID, members)
}

// ListSessions returns every live session. Records removed between reading
// the index and reading the record are skipped.
func (m *Manager) ListSessions(ctx context.Context) ([]Summary, error) {
	ids, err := m.store.SMembers(ctx, m.keys.Sessions())
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		rec, err := m.load(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summary())
	}
	return out, nil
}

// GetSession returns a single session
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Summary, error) {
	rec, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s := rec.Summary()
	return &s, nil
}

// Members returns the membership set of a session
func (m *Manager) Members(ctx context.Context, sessionID string) ([]string, error) {
	if err := checkID("session_id", sessionID); err != nil {
		return nil, err
	}
	members, err := m.store.SMembers(ctx, m.keys.Members(sessionID))
	if err != nil {
		return nil, storeErr(err)
	}
	return members, nil
}

func (m *Manager) load(ctx context.Context, sessionID string) (*Record, error) {
	if err := checkID("session_id", sessionID); err != nil {
		return nil, err
	}
	h, err := m.store.HGetAll(ctx, m.keys.Session(sessionID))
	if err != nil {
		return nil, storeErr(err)
	}
	rec, ok := recordFromHash(sessionID, h)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// targets is the membership set plus the player slots, so a member whose
// membership write has not landed yet is still reached.
func (m *Manager) targets(ctx context.Context, rec *Record) ([]string, error) {
	members, err := m.store.SMembers(ctx, m.keys.Members(rec.ID))
	if err != nil {
		return nil, storeErr(err)
	}
	return append(members, rec.players()...), nil
}

func (m *Manager) addMember(ctx context.Context, sessionID, connID string) error {
	if err := m.store.SAdd(ctx, m.keys.Members(sessionID), connID); err != nil {
		return storeErr(err)
	}
	if err := m.store.SAdd(ctx, m.keys.ConnSessions(connID), sessionID); err != nil {
		return storeErr(err)
	}
	return nil
}

// removeMember is best effort; failures are only logged
func (m *Manager) removeMember(ctx context.Context, sessionID, connID string) {
	if err := m.store.SRem(ctx, m.keys.Members(sessionID), connID); err != nil {
		m.logger.Warn("failed to remove member", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := m.store.SRem(ctx, m.keys.ConnSessions(connID), sessionID); err != nil {
		m.logger.Warn("failed to remove reverse index entry", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// purge deletes the record, the membership set, the listing entry and the
// reverse index entries of the given connections. Every step is idempotent.
func (m *Manager) purge(ctx context.Context, sessionID string, members []string) error {
	if err := m.store.Del(ctx, m.keys.Session(sessionID), m.keys.Members(sessionID)); err != nil {
		return storeErr(err)
	}
	if err := m.store.SRem(ctx, m.keys.Sessions(), sessionID); err != nil {
		return storeErr(err)
	}
	for _, c := range members {
		if c == "" {
			continue
		}
		if err := m.store.SRem(ctx, m.keys.ConnSessions(c), sessionID); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

// checkID accepts only canonical UUIDs. Session and connection ids are
// embedded in store keys, so anything else could address another key.
func checkID(field, id string) error {
	if len(id) != 36 || uuid.Validate(id) != nil {
		return fmt.Errorf("%w: %s %q is not a UUID", ErrInvalidInput, field, id)
	}
	return nil
}

func (m *Manager) done(op string, since time.Time, err *error) {
	m.observer.SessionOpDone(op, since, *err)
}
