package scorestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Default Redis client configuration constants.
const (
	defaultDialTimeout = 5 * time.Second
	defaultPingTimeout = 5 * time.Second
)

// RedisStore implements Store on Redis sorted sets.
type RedisStore struct {
	rdb *goredis.Client
}

// RedisOption applies a configuration option to the Redis client options.
type RedisOption func(*goredis.Options)

// WithPassword sets the Redis AUTH password.
func WithPassword(password string) RedisOption {
	return func(o *goredis.Options) {
		o.Password = password
	}
}

// WithDB selects the Redis logical database.
func WithDB(db int) RedisOption {
	return func(o *goredis.Options) {
		o.DB = db
	}
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, opts ...RedisOption) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	options := &goredis.Options{
		Addr:        addr,
		DialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	rdb := goredis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Add inserts value with score, replacing the score if value exists.
func (s *RedisStore) Add(ctx context.Context, key string, score int64, value string) error {
	if err := s.rdb.ZAdd(ctx, key, goredis.Z{Score: float64(score), Member: value}).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

// Remove deletes members by exact value.
func (s *RedisStore) Remove(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	members := make([]interface{}, len(values))
	for i, v := range values {
		members[i] = v
	}
	if err := s.rdb.ZRem(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", key, err)
	}
	return nil
}

// RangeDesc returns every member ordered by score descending.
func (s *RedisStore) RangeDesc(ctx context.Context, key string) ([]Member, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	return toMembers(zs), nil
}

// RangeByScoreDesc returns members with score >= min, score descending.
func (s *RedisStore) RangeByScoreDesc(ctx context.Context, key string, min int64) ([]Member, error) {
	zs, err := s.rdb.ZRevRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
		Min: strconv.FormatInt(min, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrangebyscore %s: %w", key, err)
	}
	return toMembers(zs), nil
}

// Card returns the number of members in key.
func (s *RedisStore) Card(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", key, err)
	}
	return n, nil
}

// TrimToNewest removes the lowest-scored members beyond the max newest
// ones using WATCH-based optimistic concurrency. A concurrent write to the
// key between the read and the transactional removal aborts the pass
// cleanly: no partial removal and no error.
func (s *RedisStore) TrimToNewest(ctx context.Context, key string, max int64) (int64, bool, error) {
	var removed int64

	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		card, err := tx.ZCard(ctx, key).Result()
		if err != nil {
			return err
		}
		excess := card - max
		if excess <= 0 {
			return nil
		}

		victims, err := tx.ZRangeWithScores(ctx, key, 0, excess-1).Result()
		if err != nil {
			return err
		}
		if len(victims) == 0 {
			return nil
		}

		members := make([]interface{}, len(victims))
		for i, z := range victims {
			members[i] = z.Member
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.ZRem(ctx, key, members...)
			return nil
		})
		if err != nil {
			return err
		}
		removed = int64(len(victims))
		return nil
	}, key)

	if errors.Is(err, goredis.TxFailedErr) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("trim %s: %w", key, err)
	}
	return removed, false, nil
}

func toMembers(zs []goredis.Z) []Member {
	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		value, ok := z.Member.(string)
		if !ok {
			continue
		}
		members = append(members, Member{Value: value, Score: int64(z.Score)})
	}
	return members
}
