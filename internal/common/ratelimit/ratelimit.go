// Package ratelimit enforces fixed-window request limits on a shared cache.
package ratelimit

import (
	"context"
	"time"

	"codejudge/internal/common/cache"
	appErr "codejudge/pkg/errors"
)

const defaultCacheTimeout = 200 * time.Millisecond

// Service counts hits per key in fixed windows.
type Service struct {
	cache        cache.Cache
	window       time.Duration
	cacheTimeout time.Duration
}

// NewService creates a limiter. window is used when Allow gets none.
func NewService(cacheClient cache.Cache, window, cacheTimeout time.Duration) *Service {
	if window <= 0 {
		window = time.Minute
	}
	if cacheTimeout <= 0 {
		cacheTimeout = defaultCacheTimeout
	}
	return &Service{cache: cacheClient, window: window, cacheTimeout: cacheTimeout}
}

// Allow records one hit on key and fails with TooManyRequests once more
// than max hits fall into the current window.
func (s *Service) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if s.cache == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = s.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	acquired, err := s.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	count := int64(1)
	if !acquired {
		count, err = s.cache.Incr(ctxCache, key)
		if err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
		}
		// A key without expiry would block forever.
		if ttl, ttlErr := s.cache.TTL(ctxCache, key); ttlErr == nil && ttl < 0 {
			_ = s.cache.Expire(ctxCache, key, window)
		}
	}
	if count > int64(max) {
		return appErr.Newf(appErr.TooManyRequests, "rate limit exceeded for %s", key)
	}
	return nil
}
