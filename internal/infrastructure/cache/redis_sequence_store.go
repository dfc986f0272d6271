package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/infrastructure/config"
)

// DefaultKeyPrefix namespaces receipt counters in Redis
const DefaultKeyPrefix = "schoolfin:receipt_seq"

// ReferenceSource lists references already stored for a key, so a fresh
// counter starts above them
type ReferenceSource interface {
	FindReferences(ctx context.Context, key finance.SequenceKey) ([]string, error)
}

// RedisSequenceStore implements finance.SequenceStore with INCR on one key
// per sequence scope. INCR is atomic, so every instance sharing the Redis
// database draws from the same counter.
type RedisSequenceStore struct {
	client    *redis.Client
	keyPrefix string
	source    ReferenceSource
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSequenceStore creates a store on an existing client. source may be
// nil, in which case new counters start at zero.
func NewRedisSequenceStore(client *redis.Client, keyPrefix string, source ReferenceSource) *RedisSequenceStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisSequenceStore{
		client:    client,
		keyPrefix: keyPrefix,
		source:    source,
	}
}

// Next increments and returns the counter of key. A missing counter is
// seeded with SETNX; when two instances race, one seed wins and both INCR it.
func (s *RedisSequenceStore) Next(ctx context.Context, key finance.SequenceKey) (int, error) {
	redisKey := s.redisKey(key)

	exists, err := s.client.Exists(ctx, redisKey).Result()
	if err != nil {
		return 0, s.unavailable(ctx, err)
	}
	if exists == 0 {
		seed, err := s.seed(ctx, key)
		if err != nil {
			return 0, s.unavailable(ctx, err)
		}
		if err := s.client.SetNX(ctx, redisKey, seed, 0).Err(); err != nil {
			return 0, s.unavailable(ctx, err)
		}
	}

	n, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, s.unavailable(ctx, err)
	}
	return int(n), nil
}

// Close closes the Redis client
func (s *RedisSequenceStore) Close() error {
	return s.client.Close()
}

func (s *RedisSequenceStore) seed(ctx context.Context, key finance.SequenceKey) (int, error) {
	if s.source == nil {
		return 0, nil
	}
	refs, err := s.source.FindReferences(ctx, key)
	if err != nil {
		return 0, err
	}
	return finance.MaxOrdinal(key, refs), nil
}

func (s *RedisSequenceStore) redisKey(key finance.SequenceKey) string {
	return s.keyPrefix + ":" + key.String()
}

func (s *RedisSequenceStore) unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", finance.ErrSequenceUnavailable, err)
}

var _ finance.SequenceStore = (*RedisSequenceStore)(nil)
