package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"onebox/backend/internal/domain"
)

// SlackSink 通过 Incoming Webhook 向 Slack 频道推送消息。
type SlackSink struct {
	url    string
	client *http.Client
}

// NewSlackSink 创建 Slack 目标。
func NewSlackSink(url string, timeout time.Duration) *SlackSink {
	return &SlackSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name 实现 Sink。
func (s *SlackSink) Name() string {
	return "slack"
}

// slackPayload Slack Incoming Webhook 的消息体。
type slackPayload struct {
	Text string `json:"text"`
}

// Deliver 投递一条格式化的频道消息。
func (s *SlackSink) Deliver(ctx context.Context, event domain.NotificationEvent) error {
	text := fmt.Sprintf(
		"📧 *New Interested Email!*\n*From:* %s\n*Subject:* %s\n*Date:* %s",
		event.From, event.Subject, event.Date.Format(time.RFC3339),
	)

	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
