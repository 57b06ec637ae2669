// Package classify 将邮件正文映射到固定标签集中的一个标签。
//
// 两种可互换的策略实现同一接口：确定性的规则匹配，
// 以及委托给外部文本补全服务的模型分类。
// 管道只依赖接口，策略在配置期选定。
package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
)

// Classifier 分类器接口。
//
// Classify 必须是全函数：任何输入都映射到某个标签，
// 后端故障时降级为兜底标签而不是失败，保证分类永不阻塞索引。
type Classifier interface {
	Classify(ctx context.Context, text string) domain.Label
}

// New 根据配置选择分类策略。
//
// mode 为 "llm" 时返回带缓存的外部模型分类器，否则返回规则分类器。
func New(cfg config.ClassifierConfig, log *zap.Logger) (Classifier, error) {
	switch cfg.Mode {
	case "rule":
		return NewRuleClassifier(), nil
	case "llm":
		llm, err := NewLLMClassifier(cfg, log)
		if err != nil {
			return nil, err
		}
		return newCachedClassifier(llm, cfg.CacheSize, cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", cfg.Mode)
	}
}
