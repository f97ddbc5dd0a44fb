package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Aside implements the cache-aside pattern: on a hit, dest is filled from the
// cached JSON; on a miss, fetch must fill dest and the result is written back
// with the given TTL. When the cache is unavailable Aside degrades to a plain
// fetch. Cache write failures are logged and swallowed; they never fail the
// request.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	data, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if unmarshalErr := json.Unmarshal(data, dest); unmarshalErr == nil {
			return nil
		}
		// Corrupt entry: drop it and fall through to the fetch.
		client.Del(ctx, key)
	} else if err != redis.Nil {
		middleware.Logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	if encoded, marshalErr := json.Marshal(dest); marshalErr == nil {
		if setErr := client.Set(ctx, key, encoded, ttl).Err(); setErr != nil {
			middleware.Logger.WarnContext(ctx, "cache write failed",
				slog.String("key", key), slog.String("error", setErr.Error()))
		}
	}

	return nil
}
