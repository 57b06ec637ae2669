package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/health"
	"onebox/backend/internal/middleware"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/storage"
	"onebox/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	Store        storage.Store
	Metrics      *monitoring.Metrics
	Health       *health.Checker
	WebSocketHub *websocket.Hub
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 查询面只有两个只读端点加运维端点（指标、探针、WebSocket 推送）。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:  deps.Config.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	router.Use(gincors.New(corsConfig))

	emails := NewEmailHandler(deps.Store, deps.Logger)

	router.GET("/emails", emails.List)
	router.GET("/emails/search", emails.Search)

	if deps.WebSocketHub != nil {
		router.GET("/ws", deps.WebSocketHub.HandleConnection)
	}

	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	router.GET("/live", gin.WrapF(deps.Health.LiveEndpoint()))
	router.GET("/ready", gin.WrapF(deps.Health.ReadyEndpoint()))

	return router
}
