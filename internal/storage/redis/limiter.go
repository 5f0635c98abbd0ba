package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter 基于 Redis 的固定窗口限流器
//
// 多实例部署时共享同一计数窗口；窗口过期由 Redis TTL 负责。
type Limiter struct {
	rdb    *goredis.Client
	window time.Duration
	max    int64
}

// NewLimiter 创建限流器并验证 Redis 连通性
func NewLimiter(address, password string, db int, window time.Duration, max int64) (*Limiter, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Limiter{rdb: rdb, window: window, max: max}, nil
}

// Allow 对 key（通常为客户端 IP）计数，超出窗口配额时返回 false
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		// 首次计数时设置窗口过期
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= l.max, nil
}

// Close 关闭 Redis 连接
func (l *Limiter) Close() error {
	return l.rdb.Close()
}
