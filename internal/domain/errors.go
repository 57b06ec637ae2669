package domain

import (
	"errors"
	"fmt"
)

// 错误分类哨兵。管道各阶段用 fmt.Errorf("%w: ...") 包装具体原因，
// 调用方用 errors.Is 判断类别决定处置策略：
//
//   - ErrConnection: 传输层/认证失败，会话终止，由 Supervisor 退避后重启
//   - ErrParse: 单封邮件格式损坏，跳过该封，批次继续
//   - ErrClassify: 分类后端不可用或返回未知标签，降级为兜底标签继续
//   - ErrIndex: 索引存储不可达，按单封邮件失败记录，不自动重试
//   - ErrNotify: 通知目标不可达，按目标记录，不影响其他目标与采集链路
var (
	ErrConnection = errors.New("connection error")
	ErrParse      = errors.New("parse error")
	ErrClassify   = errors.New("classification error")
	ErrIndex      = errors.New("index error")
	ErrNotify     = errors.New("notification error")
)

// ConnectionError 包装一个会话致命的传输错误。
func ConnectionError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrConnection, stage, err)
}

// ParseError 包装单封邮件的解析失败。
func ParseError(err error) error {
	return fmt.Errorf("%w: %v", ErrParse, err)
}

// IndexError 包装单封邮件的索引写入失败。
func IndexError(messageID string, err error) error {
	return fmt.Errorf("%w: message %s: %v", ErrIndex, messageID, err)
}

// NotifyError 包装单个通知目标的投递失败。
func NotifyError(sink string, err error) error {
	return fmt.Errorf("%w: sink %s: %v", ErrNotify, sink, err)
}
