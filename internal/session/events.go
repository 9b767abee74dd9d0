package session

import "encoding/json"

// Push event types
const (
	EventSessionReady = "session_ready"
	EventGameStarted  = "game_started"
	EventGameEnded    = "game_ended"
)

// Event is a push notification payload
type Event interface {
	EventType() string
}

// SessionReady tells player 1 that an opponent joined
type SessionReady struct {
	SessionID string `json:"session_id"`
	Player2   string `json:"player2"`
}

func (SessionReady) EventType() string { return EventSessionReady }

// GameStarted tells every member that the game began
type GameStarted struct {
	SessionID string `json:"session_id"`
}

func (GameStarted) EventType() string { return EventGameStarted }

// GameEnded tells members the session is over. WinnerID is empty when the
// session was closed without a result.
type GameEnded struct {
	SessionID string `json:"session_id"`
	WinnerID  string `json:"winner_id"`
	Reason    string `json:"reason"`
}

func (GameEnded) EventType() string { return EventGameEnded }

// Envelope is the frame written to the socket for every event
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps ev in an Envelope and marshals it
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Payload: payload})
}
