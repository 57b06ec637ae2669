package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"

	"onebox/backend/internal/storage"
)

// checkTimeout 单项健康检查的超时。
const checkTimeout = 3 * time.Second

// Pinger 可被探活的可选依赖（Redis 状态存储实现）。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker 健康检查器
//
// 就绪取决于索引存储可达（查询面依赖它）；
// 存活额外观测协程数量与可选的 Redis 连接。
type Checker struct {
	health healthcheck.Handler
}

// NewChecker 创建健康检查器。state 可为 nil。
func NewChecker(store storage.Store, state Pinger) *Checker {
	hc := healthcheck.NewHandler()

	hc.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))

	hc.AddReadinessCheck("index-store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		return store.Healthy(ctx)
	})

	if state != nil {
		hc.AddLivenessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			defer cancel()
			return state.Ping(ctx)
		})
	}

	return &Checker{health: hc}
}

// LiveEndpoint 存活探针处理器。
func (c *Checker) LiveEndpoint() http.HandlerFunc {
	return c.health.LiveEndpoint
}

// ReadyEndpoint 就绪探针处理器。
func (c *Checker) ReadyEndpoint() http.HandlerFunc {
	return c.health.ReadyEndpoint
}
