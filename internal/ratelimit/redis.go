package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window limiter shared by every process using the same server.
type Redis struct {
	client redis.Cmdable
	limit  int
	period time.Duration
	prefix string
}

func NewRedis(client redis.Cmdable, limit int, period time.Duration) *Redis {
	return &Redis{client: client, limit: limit, period: period, prefix: "wallet:ratelimit"}
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	slot := time.Now().UnixNano() / int64(l.period)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.period)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}
