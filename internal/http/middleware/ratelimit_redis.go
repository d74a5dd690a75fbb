package middleware

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every client process, using
// INCR/EXPIRE.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter connects to addr (host:port) and pings it.
func NewRedisLimiter(addr, password string, db int) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisLimiter{client: client}, nil
}

func (r *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	val, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		// first hit opens the window
		r.client.Expire(ctx, key, window)
	}
	return val, nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
