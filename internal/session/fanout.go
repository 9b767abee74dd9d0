package session

import (
	"time"

	"github.com/ifuryst/lol"
	"go.uber.org/zap"
)

// Sender delivers an encoded frame to a connection if it is registered
type Sender interface {
	Send(id string, msg []byte) bool
}

// Observer receives broker measurements. *metrics.Metrics satisfies it.
type Observer interface {
	Notified(event string, delivered bool)
	SessionOpDone(op string, since time.Time, err error)
}

type nopObserver struct{}

func (nopObserver) Notified(string, bool)                  {}
func (nopObserver) SessionOpDone(string, time.Time, error) {}

// Fanout encodes events and pushes them to live connections. A target that is
// not registered is a miss, never an error.
type Fanout struct {
	logger   *zap.Logger
	sender   Sender
	observer Observer
}

// NewFanout creates a fanout over sender. observer may be nil.
func NewFanout(logger *zap.Logger, sender Sender, observer Observer) *Fanout {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Fanout{
		logger:   logger.Named("session.fanout"),
		sender:   sender,
		observer: observer,
	}
}

// Notify sends ev to one connection and reports whether it was enqueued
func (f *Fanout) Notify(connID string, ev Event) bool {
	if connID == "" {
		return false
	}
	msg, err := Encode(ev)
	if err != nil {
		f.logger.Error("failed to encode event", zap.String("event", ev.EventType()), zap.Error(err))
		return false
	}
	return f.deliver(connID, ev.EventType(), msg)
}

// Broadcast sends ev once to every distinct id and returns how many were enqueued
func (f *Fanout) Broadcast(ids []string, ev Event) int {
	msg, err := Encode(ev)
	if err != nil {
		f.logger.Error("failed to encode event", zap.String("event", ev.EventType()), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, id := range lol.UniqSlice(ids) {
		if id == "" {
			continue
		}
		if f.deliver(id, ev.EventType(), msg) {
			delivered++
		}
	}
	return delivered
}

func (f *Fanout) deliver(connID, event string, msg []byte) bool {
	ok := f.sender.Send(connID, msg)
	f.observer.Notified(event, ok)
	if !ok {
		f.logger.Debug("connection not reachable",
			zap.String("connection_id", connID),
			zap.String("event", event))
	}
	return ok
}
