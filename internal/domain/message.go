package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Message 表示一封已解析的邮件记录，是系统的规范数据模型。
//
// MessageID 由邮件内容确定性派生（见 DeriveMessageID），
// 因此回填窗口与实时推送重叠时重复抓取同一封邮件会得到同一标识，
// 索引层按该标识做幂等覆盖写。
type Message struct {
	MessageID string    `json:"messageId"` // 确定性派生的稳定标识，同时作为索引文档 ID
	Subject   string    `json:"subject"`   // 主题
	From      string    `json:"from"`      // 发件人
	To        string    `json:"to"`        // 收件人
	Date      time.Time `json:"date"`      // 邮件日期
	Text      string    `json:"text"`      // 纯文本正文
	HTML      string    `json:"html"`      // HTML 正文
	Account   string    `json:"account"`   // 所属账户
	Folder    string    `json:"folder"`    // 所属文件夹（当前固定为 INBOX）
	Label     Label     `json:"label"`     // 分类标签，每次采集恰好赋值一次
	RealTime  bool      `json:"-"`         // 是否来自实时推送（而非回填），不入索引
}

// DeriveMessageID 从邮件头确定性派生稳定标识。
//
// 优先使用 Message-ID 头（全局唯一且重抓不变）；缺失时退化为
// 发件人 + 主题 + 日期的组合。两种情况都混入账户标识，
// 避免多账户收到同一封邮件时相互覆盖。
func DeriveMessageID(account, messageIDHeader, from, subject string, date time.Time) string {
	h := sha256.New()
	h.Write([]byte(account))
	h.Write([]byte{0})
	if messageIDHeader != "" {
		h.Write([]byte(messageIDHeader))
	} else {
		fmt.Fprintf(h, "%s\x00%s\x00%d", from, subject, date.Unix())
	}
	return hex.EncodeToString(h.Sum(nil))
}
