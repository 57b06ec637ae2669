// Package imap 维护邮箱账户的采集会话与会话监督。
//
// 每个账户一条会话，独占自己的传输连接与抓取状态，
// 会话间不共享任何可变状态。会话状态机：
//
//	Disconnected → Connecting → Authenticating → MailboxOpen
//	            → Backfilling → Listening →（Error → Disconnected）
//
// 任何传输层错误都让会话以 ConnectionError 终止；
// 会话自身不重试，退避重启由 Supervisor 负责。
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
)

// State 会话状态。
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateMailboxOpen    State = "mailbox_open"
	StateBackfilling    State = "backfilling"
	StateListening      State = "listening"
	StateError          State = "error"
)

const (
	// updateBuffer 邮箱更新事件的通道缓冲。
	updateBuffer = 64
	// idleRestart 周期性重启 IDLE，顺带触发一次 NOOP 刷新挂起的更新。
	idleRestart = 15 * time.Minute
	// fetchBuffer 抓取结果的通道缓冲。
	fetchBuffer = 10
)

// Pipeline 会话下游：接收抓好的原始邮件（pipeline.Driver 实现）。
type Pipeline interface {
	HandleRaw(ctx context.Context, account string, raw []byte, folder string, realTime bool) error
}

// Session 一条账户采集会话。
//
// lastCount（上一次已知的邮箱邮件总数）只被 Run 所在协程读写，
// 更新计数与计算抓取区间是同一协程内的一个原子步骤，
// 连续到达的新邮件通知不会算出重叠或漏掉的区间。
type Session struct {
	account domain.Account
	cfg     config.IMAPConfig
	pipe    Pipeline
	metrics *monitoring.Metrics
	log     *zap.Logger

	state     State
	lastCount uint32
}

// NewSession 创建会话。
func NewSession(account domain.Account, cfg config.IMAPConfig, pipe Pipeline, metrics *monitoring.Metrics, log *zap.Logger) *Session {
	return &Session{
		account: account,
		cfg:     cfg,
		pipe:    pipe,
		metrics: metrics,
		log:     log.With(zap.String("account", account.ID)),
		state:   StateDisconnected,
	}
}

// Run 执行完整的会话生命周期：连接 → 认证 → 回填 → 监听。
//
// 正常情况下阻塞到 ctx 取消才返回 nil；
// 传输层错误返回 domain.ErrConnection 类错误。
func (s *Session) Run(ctx context.Context) error {
	c, err := s.connect()
	if err != nil {
		s.setState(StateError)
		return err
	}
	defer func() {
		_ = c.Logout()
		s.setState(StateDisconnected)
	}()

	s.setState(StateAuthenticating)
	if err := c.Login(s.account.Username, s.account.Password); err != nil {
		s.setState(StateError)
		return domain.ConnectionError("authenticate", err)
	}

	mbox, err := c.Select(s.cfg.Folder, false)
	if err != nil {
		s.setState(StateError)
		return domain.ConnectionError("select mailbox", err)
	}
	s.setState(StateMailboxOpen)
	s.lastCount = mbox.Messages
	s.log.Info("mailbox opened",
		zap.String("folder", s.cfg.Folder),
		zap.Uint32("messages", mbox.Messages),
	)

	// 回填失败不放弃会话，实时监听仍然要启动
	s.setState(StateBackfilling)
	if err := s.backfill(ctx, c); err != nil {
		s.log.Error("backfill failed, continuing to listen", zap.Error(err))
	}
	if ctx.Err() != nil {
		return nil
	}

	// 重新 SELECT 刷新计数，补上回填期间到达的邮件
	if mbox, err := c.Select(s.cfg.Folder, false); err == nil && mbox.Messages > s.lastCount {
		if err := s.fetchNew(ctx, c, mbox.Messages); err != nil {
			s.setState(StateError)
			return err
		}
	}

	return s.listen(ctx, c)
}

// State 返回当前会话状态（仅诊断用途，可能读到相邻状态）。
func (s *Session) State() State {
	return s.state
}

// connect 建立到 IMAP 服务器的连接，拨号与后续认证受统一超时约束。
func (s *Session) connect() (*client.Client, error) {
	s.setState(StateConnecting)

	dialer := &net.Dialer{Timeout: s.cfg.AuthTimeout}

	var c *client.Client
	var err error
	if s.account.UseTLS {
		c, err = client.DialWithDialerTLS(dialer, s.account.Addr(), &tls.Config{ServerName: s.account.Host})
	} else {
		c, err = client.DialWithDialer(dialer, s.account.Addr())
	}
	if err != nil {
		return nil, domain.ConnectionError("dial", err)
	}

	// 认证阶段的命令超时；进入监听前清零，IDLE 是长期阻塞等待
	c.Timeout = s.cfg.AuthTimeout

	return c, nil
}

// backfill 执行有界时间窗口的历史邮件回填。
//
// 窗口内的搜索与抓取失败只记录日志；单封邮件的解析失败
// 由管道记录并跳过，不会中断批次。
func (s *Session) backfill(ctx context.Context, c *client.Client) error {
	since := time.Now().Add(-s.cfg.BackfillWindow)

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	ids, err := c.Search(criteria)
	if err != nil {
		return domain.ConnectionError("backfill search", err)
	}
	if len(ids) == 0 {
		s.log.Info("backfill: no messages in window", zap.Time("since", since))
		return nil
	}

	s.log.Info("backfill: fetching messages",
		zap.Int("count", len(ids)),
		zap.Time("since", since),
	)

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	return s.fetch(ctx, c, seqset, false)
}

// listen 订阅新邮件通知并对每次通知抓取新到达的区间。
//
// IDLE 在独立协程中阻塞，更新事件回到本协程处理：
// 计数簿记自始至终只有这一个写者。
func (s *Session) listen(ctx context.Context, c *client.Client) error {
	s.setState(StateListening)
	s.log.Info("listening for new mail", zap.Uint32("known_count", s.lastCount))

	// 清除命令超时，IDLE 是无限期等待，只被传输错误打断
	c.Timeout = 0

	updates := make(chan client.Update, updateBuffer)
	c.Updates = updates

	for {
		stop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() {
			idleDone <- c.Idle(stop, nil)
		}()

		var newTotal uint32
		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return nil

		case err := <-idleDone:
			// IDLE 不应自行结束：传输断开
			s.setState(StateError)
			if err == nil {
				err = errors.New("idle terminated unexpectedly")
			}
			return domain.ConnectionError("idle", err)

		case upd := <-updates:
			if mu, ok := upd.(*client.MailboxUpdate); ok && mu.Mailbox != nil {
				newTotal = mu.Mailbox.Messages
			}
			close(stop)
			if err := <-idleDone; err != nil {
				s.setState(StateError)
				return domain.ConnectionError("idle", err)
			}

		case <-time.After(idleRestart):
			close(stop)
			if err := <-idleDone; err != nil {
				s.setState(StateError)
				return domain.ConnectionError("idle", err)
			}
		}

		// 合并紧随其后的更新，取最新的总数
		newTotal = drainUpdates(updates, newTotal)

		if newTotal > s.lastCount {
			if err := s.fetchNew(ctx, c, newTotal); err != nil {
				s.setState(StateError)
				return err
			}
			s.setState(StateListening)
		}
	}
}

// fetchNew 抓取 (lastCount, newTotal] 区间并推进计数。
//
// 区间计算与计数更新必须在同一步骤内完成（见 Session 注释）。
func (s *Session) fetchNew(ctx context.Context, c *client.Client, newTotal uint32) error {
	from, to, ok := nextRange(s.lastCount, newTotal)
	if !ok {
		return nil
	}

	s.log.Info("fetching new messages",
		zap.Uint32("from", from),
		zap.Uint32("to", to),
	)

	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)

	if err := s.fetch(ctx, c, seqset, true); err != nil {
		return err
	}

	s.lastCount = newTotal
	return nil
}

// fetch 抓取一个序号集合并逐封交给管道。
//
// 管道层面的单封失败（解析、索引）不会中断抓取；
// 只有抓取命令本身失败才作为传输错误返回。
func (s *Session) fetch(ctx context.Context, c *client.Client, seqset *imap.SeqSet, realTime bool) error {
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate}

	messages := make(chan *imap.Message, fetchBuffer)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	source := "backfill"
	if realTime {
		source = "realtime"
	}

	for msg := range messages {
		s.metrics.MessagesFetched.WithLabelValues(s.account.ID, source).Inc()

		r := msg.GetBody(section)
		if r == nil {
			s.log.Warn("server returned no body for message", zap.Uint32("seq", msg.SeqNum))
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			s.log.Warn("failed to read message body", zap.Uint32("seq", msg.SeqNum), zap.Error(err))
			continue
		}

		// 单封邮件的错误已在管道内记录，这里不让它影响批次
		_ = s.pipe.HandleRaw(ctx, s.account.ID, raw, s.cfg.Folder, realTime)
	}

	if err := <-done; err != nil {
		return domain.ConnectionError("fetch", err)
	}
	return nil
}

// setState 记录状态迁移。
func (s *Session) setState(next State) {
	if s.state != next {
		s.log.Debug("session state change",
			zap.String("from", string(s.state)),
			zap.String("to", string(next)),
		)
		s.state = next
	}
}

// nextRange 由上次已知总数与新总数计算待抓取的序号区间 (last, total]。
//
// 返回的区间在非重叠的总数序列下不会重复覆盖同一序号，
// 也不会跳过序号；total 不大于 last 时返回 ok=false。
func nextRange(last, total uint32) (from, to uint32, ok bool) {
	if total <= last {
		return 0, 0, false
	}
	return last + 1, total, true
}

// drainUpdates 非阻塞地吸收挂起的更新事件，返回观察到的最新总数。
func drainUpdates(updates <-chan client.Update, current uint32) uint32 {
	for {
		select {
		case upd := <-updates:
			if mu, ok := upd.(*client.MailboxUpdate); ok && mu.Mailbox != nil && mu.Mailbox.Messages > current {
				current = mu.Mailbox.Messages
			}
		default:
			return current
		}
	}
}
