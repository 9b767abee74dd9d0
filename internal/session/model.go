package session

import (
	"time"
)

// State is the lifecycle state of a session. Closed sessions are deleted,
// so StateClosed never appears in a stored record.
type State string

const (
	StateIdle        State = "idle"
	StateProgressing State = "progressing"
	StateClosed      State = "closed"
)

const (
	fieldScenarioID   = "scenario_id"
	fieldScenarioName = "scenario_name"
	fieldState        = "state"
	fieldPlayer1      = "player1"
	fieldPlayer2      = "player2"
	fieldCreatedAt    = "created_at"
)

const (
	// ReasonOpponentDisconnected is sent to the remaining player when the other one drops
	ReasonOpponentDisconnected = "opponent disconnected"
	// ReasonSessionClosed is used when a close request carries no reason
	ReasonSessionClosed = "session closed"
)

// Record is a session as stored in the shared state store
type Record struct {
	ID           string
	ScenarioID   string
	ScenarioName string
	State        State
	Player1      string
	Player2      string
	CreatedAt    time.Time
}

func (r *Record) fields() map[string]string {
	return map[string]string{
		fieldScenarioID:   r.ScenarioID,
		fieldScenarioName: r.ScenarioName,
		fieldState:        string(r.State),
		fieldPlayer1:      r.Player1,
		fieldPlayer2:      r.Player2,
		fieldCreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// recordFromHash decodes a stored hash. ok is false for an absent record.
func recordFromHash(id string, h map[string]string) (rec *Record, ok bool) {
	if len(h) == 0 {
		return nil, false
	}
	rec = &Record{
		ID:           id,
		ScenarioID:   h[fieldScenarioID],
		ScenarioName: h[fieldScenarioName],
		State:        State(h[fieldState]),
		Player1:      h[fieldPlayer1],
		Player2:      h[fieldPlayer2],
	}
	if ts, err := time.Parse(time.RFC3339, h[fieldCreatedAt]); err == nil {
		rec.CreatedAt = ts
	}
	return rec, true
}

// players returns the filled player slots
func (r *Record) players() []string {
	var out []string
	if r.Player1 != "" {
		out = append(out, r.Player1)
	}
	if r.Player2 != "" {
		out = append(out, r.Player2)
	}
	return out
}

// opponent returns the other filled player slot, or "" if there is none
func (r *Record) opponent(connID string) string {
	switch connID {
	case r.Player1:
		return r.Player2
	case r.Player2:
		return r.Player1
	}
	return ""
}

// Summary is the read projection of a session returned to clients
type Summary struct {
	SessionID    string `json:"session_id"`
	ScenarioID   string `json:"scenario_id"`
	ScenarioName string `json:"scenario_name"`
	State        State  `json:"state"`
	Player1      string `json:"player1"`
	Player2      string `json:"player2"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (r *Record) Summary() Summary {
	s := Summary{
		SessionID:    r.ID,
		ScenarioID:   r.ScenarioID,
		ScenarioName: r.ScenarioName,
		State:        r.State,
		Player1:      r.Player1,
		Player2:      r.Player2,
	}
	if !r.CreatedAt.IsZero() {
		s.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return s
}
