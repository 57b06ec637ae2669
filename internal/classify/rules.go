package classify

import (
	"context"
	"strings"

	"onebox/backend/internal/domain"
)

// rule 一条关键词规则：正文包含任一关键词即命中。
type rule struct {
	keywords []string
	label    domain.Label
}

// RuleClassifier 基于有序关键词规则的确定性分类器。
//
// 规则按固定优先级依次做大小写不敏感的子串匹配，首个命中即返回：
// Meeting Booked > Interested > Out of Office > Not Interested > Spam。
// 无命中返回 Unknown。
type RuleClassifier struct {
	rules []rule
}

// NewRuleClassifier 创建规则分类器。
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{
		rules: []rule{
			{keywords: []string{"meeting"}, label: domain.LabelMeetingBooked},
			{keywords: []string{"interested"}, label: domain.LabelInterested},
			{keywords: []string{"out of office"}, label: domain.LabelOutOfOffice},
			{keywords: []string{"not interested"}, label: domain.LabelNotInterested},
			{keywords: []string{"unsubscribe", "spam"}, label: domain.LabelSpam},
		},
	}
}

// Classify 对正文做规则匹配，永不失败。
func (c *RuleClassifier) Classify(_ context.Context, text string) domain.Label {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.label
			}
		}
	}
	return domain.LabelUnknown
}
