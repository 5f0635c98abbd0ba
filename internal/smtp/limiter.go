package smtp

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// RcptLimiter 按客户端 IP 限制 RCPT 命令速率
//
// 防止单一来源批量探测系统内的邮箱地址。
type RcptLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRcptLimiter 创建 RCPT 限流器
//
// maxPerMin 为单 IP 每分钟允许的 RCPT 数量。
func NewRcptLimiter(maxPerMin int) *RcptLimiter {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return &RcptLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(maxPerMin) / 60.0),
		burst:    maxPerMin,
	}
}

// Allow 判定指定客户端地址的一次 RCPT 是否放行
func (l *RcptLimiter) Allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
