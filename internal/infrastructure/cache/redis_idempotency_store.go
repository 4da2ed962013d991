package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/posbridge/backend/internal/domain/shared"
)

const (
	defaultKeyPrefix = "webhook:idempotency:"
	connectTimeout   = 5 * time.Second
)

// RedisIdempotencyStore deduplicates webhook deliveries across instances.
// SETNX makes the mark-and-check a single atomic operation, so two instances
// receiving the same retry cannot both win.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds the connection parameters for the store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore connects to Redis and verifies the connection
// before returning the store.
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{client: client, keyPrefix: defaultKeyPrefix}, nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client, sharing it
// with other components or a test harness.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed claims a delivery key for the given TTL. It reports true when
// this call claimed the key and false when an earlier delivery already did.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, s.redisKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark delivery key processed: %w", err)
	}
	return claimed, nil
}

// IsProcessed reports whether the delivery key is currently claimed.
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check delivery key: %w", err)
	}
	return n > 0, nil
}

func (s *RedisIdempotencyStore) redisKey(key string) string {
	return s.keyPrefix + key
}

// Close closes the underlying client.
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
