package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"dropmail/backend/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件
//
// 以路由模板（而非原始路径）作为 path 标签，避免标签爆炸。
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}
