package domain

// Label 表示邮件分类结果，取值于固定的六种标签。
type Label string

const (
	LabelInterested    Label = "Interested"     // 有意向
	LabelMeetingBooked Label = "Meeting Booked" // 已约会议
	LabelNotInterested Label = "Not Interested" // 无意向
	LabelSpam          Label = "Spam"           // 垃圾邮件
	LabelOutOfOffice   Label = "Out of Office"  // 外出自动回复
	LabelUnknown       Label = "Unknown"        // 无法判断
)

// AllLabels 返回全部合法标签（按规则匹配的优先级顺序）。
func AllLabels() []Label {
	return []Label{
		LabelMeetingBooked,
		LabelInterested,
		LabelOutOfOffice,
		LabelNotInterested,
		LabelSpam,
		LabelUnknown,
	}
}

// ParseLabel 校验字符串是否为合法标签。
//
// 返回值:
//   - Label: 匹配到的标签
//   - bool: 是否为合法标签
func ParseLabel(s string) (Label, bool) {
	for _, l := range AllLabels() {
		if string(l) == s {
			return l, true
		}
	}
	return LabelUnknown, false
}

// String 实现 fmt.Stringer。
func (l Label) String() string {
	return string(l)
}
