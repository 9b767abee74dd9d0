package state

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore implements Store in process memory. It is meant for tests and
// single-node development runs; nothing survives a restart.
type MemoryStore struct {
	logger *zap.Logger
	mu     sync.RWMutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory state store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger: logger.Named("state.store.memory"),
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

// HSet implements Store.HSet
func (s *MemoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

// HGetAll implements Store.HGetAll
func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

// HSetIfMatch implements Store.HSetIfMatch
func (s *MemoryStore) HSetIfMatch(_ context.Context, key string, expect, fields map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok {
		return false, ErrKeyNotFound
	}
	for f, want := range expect {
		if h[f] != want {
			return false, nil
		}
	}
	for f, v := range fields {
		h[f] = v
	}
	return true, nil
}

// Del implements Store.Del
func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.hashes, k)
		delete(s.sets, k)
	}
	return nil
}

// Exists implements Store.Exists
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	_, ok := s.sets[key]
	return ok, nil
}

// SAdd implements Store.SAdd
func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SRem implements Store.SRem
func (s *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return nil
}

// SMembers implements Store.SMembers
func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// SCard implements Store.SCard
func (s *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.sets[key])), nil
}

// Ping implements Store.Ping
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.Close
func (s *MemoryStore) Close() error { return nil }
