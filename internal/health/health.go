package health

import (
	"time"

	"github.com/heptiolabs/healthcheck"

	"heritage/backend/internal/storage"
)

// NewHandler 创建健康检查处理器。
// 存活检查关注 goroutine 泄漏，就绪检查探测存储后端。
func NewHandler(store storage.Store) healthcheck.Handler {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))
	h.AddReadinessCheck("storage", healthcheck.Timeout(func() error {
		return store.Health()
	}, 2*time.Second))

	return h
}
