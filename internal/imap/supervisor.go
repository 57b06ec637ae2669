package imap

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
)

// healthyRunThreshold 会话存活超过该时长即视为健康运行，退避归零。
const healthyRunThreshold = 5 * time.Minute

// Supervisor 为每个配置的账户维持一条会话。
//
// 会话以 ConnectionError 终止后按指数退避重启，各账户完全独立：
// 一个账户的认证失败或断连不影响其他账户的采集。
type Supervisor struct {
	accounts []domain.Account
	cfg      config.IMAPConfig
	pipe     Pipeline
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewSupervisor 创建监督器。
func NewSupervisor(accounts []domain.Account, cfg config.IMAPConfig, pipe Pipeline, metrics *monitoring.Metrics, log *zap.Logger) *Supervisor {
	return &Supervisor{
		accounts: accounts,
		cfg:      cfg,
		pipe:     pipe,
		metrics:  metrics,
		log:      log,
	}
}

// Run 启动全部账户会话并阻塞到 ctx 取消。
func (sv *Supervisor) Run(ctx context.Context) error {
	g := new(errgroup.Group)

	for _, account := range sv.accounts {
		account := account
		g.Go(func() error {
			sv.runAccount(ctx, account)
			return nil
		})
	}

	return g.Wait()
}

// runAccount 单个账户的重启循环。
func (sv *Supervisor) runAccount(ctx context.Context, account domain.Account) {
	log := sv.log.With(zap.String("account", account.ID))
	backoff := sv.cfg.MinBackoff

	for {
		session := NewSession(account, sv.cfg, sv.pipe, sv.metrics, sv.log)

		sv.metrics.SessionsActive.Inc()
		started := time.Now()
		err := session.Run(ctx)
		sv.metrics.SessionsActive.Dec()

		if ctx.Err() != nil {
			log.Info("session stopped")
			return
		}

		if err == nil {
			err = errors.New("session returned without error")
		}

		// 一段健康运行之后的断连从最小退避重新开始
		if time.Since(started) >= healthyRunThreshold {
			backoff = sv.cfg.MinBackoff
		}

		sv.metrics.SessionRestarts.WithLabelValues(account.ID).Inc()
		log.Error("session terminated, restarting",
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > sv.cfg.MaxBackoff {
			backoff = sv.cfg.MaxBackoff
		}
	}
}
