package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
)

// classifyPrompt 分类提示词模板。要求模型只回复标签本身。
const classifyPrompt = `You are an email classifier. Choose exactly one label from the list below that best fits the intent of this email:
- Interested
- Meeting Booked
- Not Interested
- Spam
- Out of Office

Email:
"""
%s
"""

Respond with exactly one of the labels (nothing else).`

// maxPromptChars 送入模型的正文截断长度，避免超长邮件撑爆请求。
const maxPromptChars = 4000

// LLMClassifier 委托外部文本补全服务（chat completions 兼容接口）分类。
//
// 网络调用有独立超时；调用失败或超时降级为 Unknown，
// 模型返回无法识别的标签时强制为 Not Interested。
// 两种降级都不会向调用方暴露错误，索引链路不受分类后端可用性影响。
type LLMClassifier struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	log      *zap.Logger
}

// NewLLMClassifier 创建外部模型分类器。
func NewLLMClassifier(cfg config.ClassifierConfig, log *zap.Logger) (*LLMClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("llm classifier: endpoint is required")
	}
	return &LLMClassifier{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify 调用外部服务分类一段正文。
func (c *LLMClassifier) Classify(ctx context.Context, text string) domain.Label {
	label, err := c.complete(ctx, text)
	if err != nil {
		c.log.Warn("classifier backend unavailable, falling back",
			zap.String("fallback", domain.LabelUnknown.String()),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrClassify, err)),
		)
		return domain.LabelUnknown
	}
	return label
}

// complete 发起一次补全请求并把回复校验为标签。
func (c *LLMClassifier) complete(ctx context.Context, text string) (domain.Label, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(classifyPrompt, text)},
		},
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	label, ok := domain.ParseLabel(reply)
	if !ok {
		// 模型没有按要求回复标签本身时强制为安全默认值
		c.log.Warn("classifier returned unrecognized label, coercing",
			zap.String("reply", reply),
			zap.String("coerced", domain.LabelNotInterested.String()),
		)
		return domain.LabelNotInterested, nil
	}
	return label, nil
}
