package domain

import "time"

// NotificationEvent 表示一次通知事件。
//
// 仅当邮件来自实时推送且被分类为 Interested 时构造；
// 事件本身不持久化，投递为尽力而为、每个目标至多一次。
type NotificationEvent struct {
	ID        string    `json:"id"`        // 事件标识
	Account   string    `json:"account"`   // 触发账户
	From      string    `json:"from"`      // 发件人
	Subject   string    `json:"subject"`   // 主题
	Date      time.Time `json:"date"`      // 邮件日期
	Text      string    `json:"text"`      // 纯文本正文
	Timestamp time.Time `json:"timestamp"` // 事件构造时间
}

// NotificationEventFromMessage 从邮件记录构造通知事件。
func NotificationEventFromMessage(id string, msg *Message) NotificationEvent {
	return NotificationEvent{
		ID:        id,
		Account:   msg.Account,
		From:      msg.From,
		Subject:   msg.Subject,
		Date:      msg.Date,
		Text:      msg.Text,
		Timestamp: time.Now(),
	}
}

// ShouldNotify 判断一封邮件是否满足通知触发条件。
//
// 规则固定：实时到达且标签为 Interested。回填邮件永不触发通知。
func ShouldNotify(msg *Message) bool {
	return msg.RealTime && msg.Label == LabelInterested
}
