package cnst

// Tracer names used across the broker
const (
	// TraceSession is the tracer name for session lifecycle logic
	TraceSession = "skirmish/session"
	// TraceServer is the tracer name for the HTTP and WebSocket surface
	TraceServer = "skirmish/server"
)

// Span names
const (
	SpanSessionCreate     = "session.create"
	SpanSessionJoin       = "session.join"
	SpanSessionStartGame  = "session.start_game"
	SpanSessionClose      = "session.close"
	SpanSessionEndGame    = "session.end_game"
	SpanSessionDisconnect = "session.disconnect"
	SpanWSConnect         = "ws.connect"
)

// Attribute keys
const (
	AttrSessionID    = "session.id"
	AttrScenarioID   = "scenario.id"
	AttrConnectionID = "connection.id"
	AttrNotified     = "session.notified"
	AttrClientAddr   = "client.remote_addr"
	AttrErrorReason  = "error.reason"
)
