package state

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by conditional writes against a key that does not exist
var ErrKeyNotFound = errors.New("key not found")

// Store is the shared key-value store holding session records (hashes) and
// membership sets. Every call is a single store command; callers compose them.
type Store interface {
	// HSet sets the given fields on the hash at key, creating it if needed
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns every field of the hash at key, or an empty map if absent
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSetIfMatch atomically applies fields to the hash at key only when every
	// field in expect currently holds the expected value. A missing field
	// matches "". Returns ErrKeyNotFound when the hash does not exist.
	HSetIfMatch(ctx context.Context, key string, expect, fields map[string]string) (bool, error)
	// Del removes the keys; missing keys are ignored
	Del(ctx context.Context, keys ...string) error
	// Exists reports whether key holds a hash or a set
	Exists(ctx context.Context, key string) (bool, error)
	// SAdd adds members to the set at key
	SAdd(ctx context.Context, key string, members ...string) error
	// SRem removes members from the set at key; an emptied set disappears
	SRem(ctx context.Context, key string, members ...string) error
	// SMembers returns the members of the set at key, or nil if absent
	SMembers(ctx context.Context, key string) ([]string, error)
	// SCard returns the size of the set at key
	SCard(ctx context.Context, key string) (int64, error)
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	// Close releases the backend connection
	Close() error
}
