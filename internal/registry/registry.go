package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps live connection ids to their outboxes. It is the only place
// that decides whether a connection is reachable.
type Registry struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	outboxes map[string]*Outbox
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger.Named("registry"),
		outboxes: make(map[string]*Outbox),
	}
}

// Register binds id to outbox. A previous binding for id is replaced and its
// outbox closed.
func (r *Registry) Register(id string, outbox *Outbox) {
	r.mu.Lock()
	old, replaced := r.outboxes[id]
	r.outboxes[id] = outbox
	r.mu.Unlock()

	if replaced && old != outbox {
		old.Close()
		r.logger.Warn("replaced existing connection", zap.String("connection_id", id))
	}
	r.logger.Debug("registered connection", zap.String("connection_id", id))
}

// Unregister removes id and closes its outbox; absent ids are ignored
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	outbox, ok := r.outboxes[id]
	delete(r.outboxes, id)
	r.mu.Unlock()

	if ok {
		outbox.Close()
		r.logger.Debug("unregistered connection", zap.String("connection_id", id))
	}
}

// Send enqueues msg for id without blocking. It reports false when id is not
// registered or its outbox is already closed.
func (r *Registry) Send(id string, msg []byte) bool {
	r.mu.RLock()
	outbox, ok := r.outboxes[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return outbox.Push(msg)
}

// Has reports whether id is currently registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.outboxes[id]
	return ok
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outboxes)
}

// IDs returns the registered connection ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.outboxes))
	for id := range r.outboxes {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// CloseAll closes every outbox and empties the registry
func (r *Registry) CloseAll() {
	r.mu.Lock()
	outboxes := r.outboxes
	r.outboxes = make(map[string]*Outbox)
	r.mu.Unlock()

	for _, o := range outboxes {
		o.Close()
	}
	r.logger.Info("closed all connections", zap.Int("count", len(outboxes)))
}
