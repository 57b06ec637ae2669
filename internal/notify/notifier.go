// Package notify 将通知事件分发到各个独立的外部目标。
//
// 每个目标（Slack、通用 Webhook）单独投递：单个目标失败被就地捕获、
// 记录日志与指标，既不影响其他目标，也不会传播回采集管道。
// 不做重试，投递语义为尽力而为、每目标每事件至多一次。
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/pool"
)

// Sink 一个通知目标。
type Sink interface {
	// Name 目标名，用于日志与指标。
	Name() string
	// Deliver 投递一个事件，失败返回错误；实现须可被并发调用。
	Deliver(ctx context.Context, event domain.NotificationEvent) error
}

// Fanout 通知分发器。
//
// 投递经由协程池异步执行，采集会话不会被慢目标阻塞；
// 每个目标有独立的速率限制，超限的事件直接丢弃（至多一次语义）。
type Fanout struct {
	sinks    []Sink
	limiters map[string]*rate.Limiter
	workers  *pool.WorkerPool
	timeout  time.Duration
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewFanout 创建分发器。
func NewFanout(sinks []Sink, cfg config.NotifyConfig, metrics *monitoring.Metrics, log *zap.Logger) *Fanout {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	limiters := make(map[string]*rate.Limiter, len(sinks))
	for _, sink := range sinks {
		limiters[sink.Name()] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}

	return &Fanout{
		sinks:    sinks,
		limiters: limiters,
		workers:  pool.NewWorkerPool(cfg.Workers, cfg.Workers*8, log),
		timeout:  cfg.Timeout,
		metrics:  metrics,
		log:      log,
	}
}

// BuildSinks 根据配置组装目标列表，未配置地址的目标跳过。
func BuildSinks(cfg config.NotifyConfig, log *zap.Logger) []Sink {
	sinks := make([]Sink, 0, 2)
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, NewSlackSink(cfg.SlackWebhookURL, cfg.Timeout))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, cfg.WebhookSecret, cfg.Timeout))
	}
	if len(sinks) == 0 {
		log.Warn("no notification sinks configured, interested-mail notifications disabled")
	}
	return sinks
}

// Start 启动投递协程池。
func (f *Fanout) Start(ctx context.Context) {
	f.workers.Start(ctx)
}

// Stop 停止投递并等待在途任务结束。
func (f *Fanout) Stop() {
	f.workers.Stop()
}

// Dispatch 将事件分发给全部目标。
//
// 立即返回；实际投递在协程池中进行。队列满时丢弃并计数。
func (f *Fanout) Dispatch(event domain.NotificationEvent) {
	for _, sink := range f.sinks {
		sink := sink
		submitted := f.workers.TrySubmit(func() {
			f.deliver(sink, event)
		})
		if !submitted {
			f.metrics.NotificationDropped.Inc()
			f.log.Warn("notification queue full, dropping event",
				zap.String("sink", sink.Name()),
				zap.String("event", event.ID),
			)
		}
	}
}

// deliver 向单个目标投递，失败只记录不传播。
func (f *Fanout) deliver(sink Sink, event domain.NotificationEvent) {
	limiter := f.limiters[sink.Name()]
	if limiter != nil && !limiter.Allow() {
		f.metrics.NotificationDropped.Inc()
		f.log.Warn("sink rate limit exceeded, dropping event",
			zap.String("sink", sink.Name()),
			zap.String("event", event.ID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := sink.Deliver(ctx, event); err != nil {
		f.metrics.NotificationErrors.WithLabelValues(sink.Name()).Inc()
		f.log.Error("notification delivery failed",
			zap.String("event", event.ID),
			zap.Error(domain.NotifyError(sink.Name(), err)),
		)
		return
	}

	f.metrics.NotificationsSent.WithLabelValues(sink.Name()).Inc()
	f.log.Info("notification delivered",
		zap.String("sink", sink.Name()),
		zap.String("event", event.ID),
		zap.String("subject", event.Subject),
	)
}
