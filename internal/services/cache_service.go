package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridemate/pkg/cache"
	"ridemate/pkg/logger"
)

// ErrCacheMiss is returned by CacheService.Get when nothing is cached.
var ErrCacheMiss = cache.ErrCacheMiss

type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	InvalidateByPattern(ctx context.Context, pattern string) error
}

type cacheService struct {
	redis      *cache.RedisCache
	logger     *logger.Logger
	defaultTTL time.Duration
	keyPrefix  string
}

func NewCacheService(redis *cache.RedisCache, logger *logger.Logger, keyPrefix string, defaultTTL time.Duration) CacheService {
	return &cacheService{
		redis:      redis,
		logger:     logger,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if err := s.redis.Get(ctx, s.buildKey(key), dest); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).Debug("Cache hit")
	return nil
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration == 0 {
		expiration = s.defaultTTL
	}

	if err := s.redis.Set(ctx, s.buildKey(key), value, expiration); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).
		WithField("expiration", expiration).
		Debug("Cache set")
	return nil
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}

	if err := s.redis.Delete(ctx, fullKeys...); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func (s *cacheService) InvalidateByPattern(ctx context.Context, pattern string) error {
	n, err := s.redis.DeletePattern(ctx, s.buildKey(pattern))
	if err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", pattern, err)
	}
	s.logger.WithField("pattern", pattern).WithField("deleted", n).Debug("Cache invalidated")
	return nil
}

func (s *cacheService) buildKey(key string) string {
	if s.keyPrefix != "" {
		return fmt.Sprintf("%s:%s", s.keyPrefix, key)
	}
	return key
}
