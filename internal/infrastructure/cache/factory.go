package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/shared"
	"github.com/posbridge/backend/internal/infrastructure/config"
)

// IdempotencyStoreFactory picks the idempotency store backend. Redis is the
// production choice; the in-memory store only dedups within one process.
type IdempotencyStoreFactory struct {
	redisConfig   config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

// IdempotencyStoreFactoryOption configures the factory.
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory store (the default) or fails startup.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowFallback = allow
	}
}

func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:   cfg,
		logger:        zap.NewNop(),
		allowFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis-backed store when Redis answers, otherwise the
// in-memory store when fallback is allowed. Multi-instance deployments must
// disable fallback: process-local dedup cannot stop a webhook retry that
// lands on a different instance.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return store, nil
	}

	if !f.allowFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(err))
	return f.CreateInMemoryStore(), nil
}

// CreateRedisStore connects to Redis and fails fast when it cannot.
func (f *IdempotencyStoreFactory) CreateRedisStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create Redis idempotency store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore returns the process-local store used in tests and
// single-instance deployments.
func (f *IdempotencyStoreFactory) CreateInMemoryStore() shared.IdempotencyStore {
	return NewInMemoryIdempotencyStore()
}
