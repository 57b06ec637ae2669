// Package pipeline 实现每封邮件的编排：解析 → 分类 → 索引 → 条件通知。
//
// 各阶段独立提交，无跨阶段事务：分类失败降级为兜底标签，
// 索引失败作为单封邮件错误上报但不中断批次，
// 通知失败被分发器就地隔离。整体语义为至少一次/尽力而为。
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onebox/backend/internal/classify"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/mailparse"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/storage"
)

// Dispatcher 通知分发入口（notify.Fanout 实现）。
type Dispatcher interface {
	Dispatch(event domain.NotificationEvent)
}

// SeenStore 跨重启的已处理标记存储（可选，Redis 实现）。
type SeenStore interface {
	IsSeen(ctx context.Context, messageID string) (bool, error)
	MarkSeen(ctx context.Context, messageID string) error
}

// Broadcaster 新邮件事件的前端推送（可选，WebSocket Hub 实现）。
type Broadcaster interface {
	BroadcastNewMail(msg *domain.Message)
}

// Driver 管道驱动器。
//
// 不持有任何连接：采集会话把抓好的内容交给它处理。
// 依赖全部注入，可对任一协作方替换测试替身。
type Driver struct {
	classifier classify.Classifier
	store      storage.Store
	dispatcher Dispatcher
	seen       SeenStore   // 可为 nil
	hub        Broadcaster // 可为 nil
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// NewDriver 创建管道驱动器。seen 与 hub 可为 nil。
func NewDriver(
	classifier classify.Classifier,
	store storage.Store,
	dispatcher Dispatcher,
	seen SeenStore,
	hub Broadcaster,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *Driver {
	return &Driver{
		classifier: classifier,
		store:      store,
		dispatcher: dispatcher,
		seen:       seen,
		hub:        hub,
		metrics:    metrics,
		log:        log,
	}
}

// HandleRaw 处理一封未解析的原始邮件。
//
// 解析失败返回 domain.ErrParse 类错误；调用方跳过该封继续批次。
func (d *Driver) HandleRaw(ctx context.Context, account string, raw []byte, folder string, realTime bool) error {
	msg, err := mailparse.Parse(raw, account, folder)
	if err != nil {
		d.metrics.ParseFailures.WithLabelValues(account).Inc()
		d.log.Warn("skipping unparsable message",
			zap.String("account", account),
			zap.Error(err),
		)
		return err
	}
	return d.Handle(ctx, msg, realTime)
}

// Handle 处理一封已解析的邮件：分类 → 索引 → 条件通知。
//
// 索引必须执行而与分类结果无关（每封采集到的邮件都要可检索）；
// 通知仅在索引成功之后、且满足实时 + Interested 条件时触发。
// 回填邮件永不触发通知。
func (d *Driver) Handle(ctx context.Context, msg *domain.Message, realTime bool) error {
	msg.RealTime = realTime

	// 回填路径查已处理标记，重连后的重复回填直接跳过
	if d.seen != nil && !realTime {
		if seen, err := d.seen.IsSeen(ctx, msg.MessageID); err == nil && seen {
			d.metrics.DuplicatesSkipped.WithLabelValues(msg.Account).Inc()
			return nil
		}
	}

	start := time.Now()
	msg.Label = d.classifier.Classify(ctx, msg.Text)
	d.metrics.ClassifyDuration.Observe(time.Since(start).Seconds())

	if err := d.store.Upsert(ctx, msg); err != nil {
		if !errors.Is(err, domain.ErrIndex) {
			err = domain.IndexError(msg.MessageID, err)
		}
		d.metrics.IndexErrors.WithLabelValues(msg.Account).Inc()
		d.log.Error("failed to index message",
			zap.String("account", msg.Account),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return err
	}

	d.metrics.MessagesIndexed.WithLabelValues(msg.Account, msg.Label.String()).Inc()
	d.log.Info("message indexed",
		zap.String("account", msg.Account),
		zap.String("subject", msg.Subject),
		zap.String("label", msg.Label.String()),
		zap.Bool("realtime", realTime),
	)

	if d.seen != nil {
		if err := d.seen.MarkSeen(ctx, msg.MessageID); err != nil {
			d.log.Warn("failed to mark message as seen", zap.Error(err))
		}
	}

	if d.hub != nil {
		d.hub.BroadcastNewMail(msg)
	}

	if d.dispatcher != nil && domain.ShouldNotify(msg) {
		d.dispatcher.Dispatch(domain.NotificationEventFromMessage(uuid.New().String(), msg))
	}

	return nil
}
