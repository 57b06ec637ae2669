package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onebox/backend/internal/classify"
	"onebox/backend/internal/config"
	"onebox/backend/internal/health"
	"onebox/backend/internal/imap"
	"onebox/backend/internal/logger"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/notify"
	"onebox/backend/internal/pipeline"
	"onebox/backend/internal/storage"
	"onebox/backend/internal/storage/elastic"
	"onebox/backend/internal/storage/memory"
	redisstate "onebox/backend/internal/storage/redis"
	httptransport "onebox/backend/internal/transport/http"
	"onebox/backend/internal/websocket"
)

// main 启动同时包含邮件采集管道与 HTTP 查询 API 的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting onebox server",
		zap.Int("accounts", len(cfg.Accounts)),
		zap.String("classifier", cfg.Classifier.Mode),
		zap.String("log_level", cfg.Log.Level),
	)

	// 初始化索引存储
	var store storage.Store
	if len(cfg.Elastic.Addresses) > 0 {
		store, err = elastic.NewStore(cfg.Elastic, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize elasticsearch storage: %v", err))
		}
		log.Info("using elasticsearch index")
	} else {
		store = memory.NewStore()
		log.Info("using memory index (development mode)")
	}

	// 初始化采集状态存储（可选）
	var seen pipeline.SeenStore
	var statePinger health.Pinger
	if cfg.Redis.Address != "" {
		state, err := redisstate.New(cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize redis state store: %v", err))
		}
		defer state.Close()
		seen = state
		statePinger = state
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, statePinger)

	// 初始化分类器
	classifier, err := classify.New(cfg.Classifier, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize classifier: %v", err))
	}

	// 初始化通知分发
	sinks := notify.BuildSinks(cfg.Notify, log)
	fanout := notify.NewFanout(sinks, cfg.Notify, metrics, log)

	// 初始化 WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)

	// 初始化管道与会话监督
	driver := pipeline.NewDriver(classifier, store, fanout, seen, wsHub, metrics, log)
	supervisor := imap.NewSupervisor(cfg.Accounts, cfg.IMAP, driver, metrics, log)

	// HTTP 服务器
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		Store:        store,
		Metrics:      metrics,
		Health:       healthChecker,
		WebSocketHub: wsHub,
		Logger:       log,
	})
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fanout.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 会话监督 goroutine（内部为每个账户启动独立会话）
	group.Go(func() error {
		log.Info("starting account sessions")
		return supervisor.Run(groupCtx)
	})

	// 优雅停机 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}

	// 等待在途的通知投递完成
	fanout.Stop()
	log.Info("server stopped")
}
