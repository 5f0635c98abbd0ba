package monitoring

import (
	"time"

	"github.com/heptiolabs/healthcheck"

	"dropmail/backend/internal/storage"
)

// NewHealthHandler 创建健康检查处理器
//
// liveness：协程数量阈值；readiness：存储连通性。
func NewHealthHandler(store storage.Store) healthcheck.Handler {
	handler := healthcheck.NewHandler()

	handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))
	handler.AddReadinessCheck("storage", healthcheck.Timeout(func() error {
		return store.Health()
	}, 3*time.Second))

	return handler
}
