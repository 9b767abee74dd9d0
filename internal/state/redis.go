package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// hsetIfMatch returns -1 when the hash is missing, 0 when a guard field
// differs and 1 once the fields were written.
// ARGV: <n guards> <guard field> <guard value>... <field> <value>...
var hsetIfMatch = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local n = tonumber(ARGV[1])
for i = 0, n - 1 do
  local cur = redis.call('HGET', KEYS[1], ARGV[2 + 2 * i])
  if not cur then cur = '' end
  if cur ~= ARGV[3 + 2 * i] then
    return 0
  end
end
for i = 2 + 2 * n, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// RedisStore implements Store using Redis
type RedisStore struct {
	logger *zap.Logger
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed state store. Addr may list several
// addresses separated by ";" or "," for sentinel and cluster deployments.
func NewRedisStore(logger *zap.Logger, cfg config.StoreRedisConfig) (*RedisStore, error) {
	opts := &redis.UniversalOptions{
		Addrs:    splitAddrs(cfg.Addr),
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		opts.DB = cfg.DB
	}
	client := redis.NewUniversalClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		logger: logger.Named("state.store.redis"),
		client: client,
	}, nil
}

// HSet implements Store.HSet
func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to hset %s: %w", key, err)
	}
	return nil
}

// HGetAll implements Store.HGetAll
func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	out, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hgetall %s: %w", key, err)
	}
	return out, nil
}

// HSetIfMatch implements Store.HSetIfMatch
func (s *RedisStore) HSetIfMatch(ctx context.Context, key string, expect, fields map[string]string) (bool, error) {
	args := make([]any, 0, 1+2*len(expect)+2*len(fields))
	args = append(args, len(expect))
	for f, v := range expect {
		args = append(args, f, v)
	}
	for f, v := range fields {
		args = append(args, f, v)
	}

	res, err := hsetIfMatch.Run(ctx, s.client, []string{key}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to conditionally update %s: %w", key, err)
	}
	switch res {
	case -1:
		return false, ErrKeyNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// Del implements Store.Del
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	// keys may hash to different slots in cluster mode
	for _, k := range keys {
		if err := s.client.Del(ctx, k).Err(); err != nil {
			return fmt.Errorf("failed to del %s: %w", k, err)
		}
	}
	return nil
}

// Exists implements Store.Exists
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// SAdd implements Store.SAdd
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.client.SAdd(ctx, key, toArgs(members)...).Err(); err != nil {
		return fmt.Errorf("failed to sadd %s: %w", key, err)
	}
	return nil
}

// SRem implements Store.SRem
func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.client.SRem(ctx, key, toArgs(members)...).Err(); err != nil {
		return fmt.Errorf("failed to srem %s: %w", key, err)
	}
	return nil
}

// SMembers implements Store.SMembers
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	out, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to smembers %s: %w", key, err)
	}
	return out, nil
}

// SCard implements Store.SCard
func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scard %s: %w", key, err)
	}
	return n, nil
}

// Ping implements Store.Ping
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.Close
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func toArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, v := range ss {
		out[i] = v
	}
	return out
}

// splitAddrs accepts ";" or "," separated addresses and drops empty entries
func splitAddrs(addr string) []string {
	return strings.FieldsFunc(addr, func(r rune) bool {
		return r == ';' || r == ',' || r == ' '
	})
}
