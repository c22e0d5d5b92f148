package utils

import (
	"context"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
)

// StoreRedis caches a value under key with the given TTL. Failures are logged
// and swallowed, the cache is best effort.
func StoreRedis[T any](ctx context.Context, key string, value T, ttl time.Duration, moduleName string, functionName string) {
	logger := config.GetLogger()
	if err := config.SetRedisObject(ctx, key, value, ttl); err != nil {
		config.LogError(logger, moduleName, functionName, "cache store", key, err)
	}
}

// RetrieveRedis loads a cached value. ok is false on miss or decode failure.
func RetrieveRedis[T any](ctx context.Context, key string) (T, bool) {
	var out T
	ok, err := config.GetRedisObject(ctx, key, &out)
	if err != nil || !ok {
		var zero T
		return zero, false
	}
	return out, true
}

func InvalidateRedis(ctx context.Context, keys ...string) {
	logger := config.GetLogger()
	for _, key := range keys {
		if err := config.RemoveRedisKey(ctx, key); err != nil {
			config.LogError(logger, "utils", "InvalidateRedis", "cache invalidate", key, err)
		}
	}
}
