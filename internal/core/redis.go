// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/bizdesk/internal/config"
)

const (
	redisConnectAttempts = 5
	redisPingTimeout     = 5 * time.Second
)

// Redis backs token revocation and rate limiting. Both fail differently when
// it is down: revocation checks fail closed, rate limits fall back locally.
type Redis struct {
	Client *redis.Client
}

// NewRedis retries the first ping so the API can start alongside its cache.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := &Redis{Client: redis.NewClient(opts)}

	wait := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = r.Ping(ctx)
		if err == nil {
			return r, nil
		}
		if attempt == redisConnectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			_ = r.Close() //nolint:errcheck // cleanup on cancelled startup
			return nil, ctx.Err()
		case <-time.After(jitteredDuration(wait)):
		}
		wait *= 2
	}

	_ = r.Close() //nolint:errcheck // cleanup on connection failure
	return nil, fmt.Errorf("connect redis after %d attempts: %w", redisConnectAttempts, err)
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := r.Client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}
