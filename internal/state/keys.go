package state

import "strings"

// Keys builds the store key layout under a configurable prefix:
//
//	<p>:session:<id>            hash, session record
//	<p>:session:<id>:members    set, connection ids
//	<p>:sessions                set, ids of live sessions
//	<p>:conn:<cid>:sessions     set, sessions a connection belongs to
type Keys struct {
	prefix string
}

func NewKeys(prefix string) Keys {
	return Keys{prefix: strings.TrimSuffix(prefix, ":")}
}

func (k Keys) join(parts ...string) string {
	if k.prefix == "" {
		return strings.Join(parts, ":")
	}
	return k.prefix + ":" + strings.Join(parts, ":")
}

func (k Keys) Session(id string) string { return k.join("session", id) }

func (k Keys) Members(id string) string { return k.join("session", id, "members") }

func (k Keys) Sessions() string { return k.join("sessions") }

func (k Keys) ConnSessions(connID string) string { return k.join("conn", connID, "sessions") }
