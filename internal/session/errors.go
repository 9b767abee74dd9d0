package session

import "errors"

var (
	// ErrSessionNotFound is returned when the session record does not exist
	ErrSessionNotFound = errors.New("session not found")
	// ErrScenarioNotFound is returned when the requested scenario does not exist
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrSessionFull is returned when both player slots are already taken
	ErrSessionFull = errors.New("session is full")
	// ErrSessionNotJoinable is returned when the session is no longer idle
	ErrSessionNotJoinable = errors.New("session is not joinable")
	// ErrInvalidReference is returned for malformed scenario ids
	ErrInvalidReference = errors.New("invalid scenario reference")
	// ErrInvalidInput is returned for missing or inconsistent request fields
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps every failure of the shared state store or the scenario store
	ErrStoreUnavailable = errors.New("state store unavailable")
)

func storeErr(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return errors.Join(ErrStoreUnavailable, err)
}
