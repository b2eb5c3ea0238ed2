package kvstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 500

// Options configures the Redis connection.
type Options struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	// OpTimeout bounds each store call. Zero leaves calls bounded only by the caller's context.
	OpTimeout time.Duration
}

// RedisStore implements Store on top of a single long-lived go-redis connection pool.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// Dial connects to Redis and verifies the connection with a PING. Callers treat an error as
// fatal: the token registry cannot run without its store.
func Dial(ctx context.Context, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
	})
	store := NewRedisStore(client, opts.OpTimeout)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[kvstore.Dial] %s", opts.Addr)
	}
	return store, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("GET", err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("SET", err)
	}
	return nil
}

// Update is SET key value XX KEEPTTL: a single command, so a key deleted or expired since it
// was read is never recreated.
func (s *RedisStore) Update(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.client.SetArgs(ctx, key, value, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("SET XX", err)
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable("DEL", err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, unavailable("EXPIRE", err)
	}
	return ok, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, unavailable("PTTL", err)
	}
	// PTTL replies -2 for a missing key and -1 for a key without expiry. go-redis passes
	// these sentinels through as raw durations.
	switch ttl {
	case -2, -2 * time.Millisecond:
		return 0, false, nil
	case -1, -1 * time.Millisecond:
		return NoExpiration, true, nil
	}
	return ttl, true, nil
}

// Keys walks the keyspace with SCAN rather than KEYS so the server is never blocked by one
// large reply. The cost is still linear in the total number of keys.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.scan(ctx, cursor, pattern)
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisStore) scan(ctx context.Context, cursor uint64, pattern string) ([]string, uint64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
	if err != nil {
		return nil, 0, unavailable("SCAN", err)
	}
	return keys, next, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("PING", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(command string, err error) error {
	return errors.Wrapf(ErrUnavailable, "%s: %v", command, err)
}
