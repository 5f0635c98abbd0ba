package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Allower 按 key 判定是否放行的限流器
//
// Redis 固定窗口限流器实现此接口；Redis 不可用时由进程内
// 令牌桶兜底。
type Allower interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// localLimiter 进程内令牌桶限流器（按 key 独立）
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newLocalLimiter(rps float64, burst int) *localLimiter {
	return &localLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *localLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow(), nil
}

// RateLimitByIP 按客户端 IP 限流
//
// limiter 为 nil 时使用进程内令牌桶；限流器自身出错时放行，
// 限流是保护手段而非正确性约束。
func RateLimitByIP(limiter Allower, log *zap.Logger, rps float64, burst int) gin.HandlerFunc {
	if limiter == nil {
		limiter = newLocalLimiter(rps, burst)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), "ratelimit:ip:"+c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request",
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
