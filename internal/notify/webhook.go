package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"onebox/backend/internal/domain"
)

// WebhookSink 向通用 HTTP 目标 POST 事件载荷。
//
// 配置了密钥时附带 HMAC-SHA256 签名头，接收方可验证来源。
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookSink 创建通用 Webhook 目标。
func NewWebhookSink(url, secret string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Name 实现 Sink。
func (s *WebhookSink) Name() string {
	return "webhook"
}

// webhookPayload 通用 Webhook 的事件载荷。
type webhookPayload struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Text    string `json:"text"`
}

// Deliver 投递事件载荷。
func (s *WebhookSink) Deliver(ctx context.Context, event domain.NotificationEvent) error {
	body, err := json.Marshal(webhookPayload{
		From:    event.From,
		Subject: event.Subject,
		Date:    event.Date.Format(time.RFC3339),
		Text:    event.Text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-ID", event.ID)
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", signPayload(body, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// signPayload 生成 HMAC-SHA256 签名
func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
