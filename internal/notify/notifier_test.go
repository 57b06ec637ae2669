package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
)

var testMetrics = monitoring.NewMetrics()

type fakeSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Deliver(_ context.Context, event domain.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func testEvent(id string) domain.NotificationEvent {
	return domain.NotificationEvent{
		ID:      id,
		Account: "me@example.com",
		From:    "alice@example.com",
		Subject: "Hello",
		Date:    time.Now(),
		Text:    "body",
	}
}

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		Timeout:       2 * time.Second,
		RatePerMinute: 600,
		Workers:       2,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestFanout_DeliversToAllSinks(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	fanout := NewFanout([]Sink{a, b}, testNotifyConfig(), testMetrics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fanout.Start(ctx)

	fanout.Dispatch(testEvent("evt-1"))

	waitFor(t, func() bool { return a.count() == 1 && b.count() == 1 })
	fanout.Stop()
}

func TestFanout_FailingSinkDoesNotSuppressOthers(t *testing.T) {
	failing := &fakeSink{name: "failing", err: errors.New("target unreachable")}
	healthy := &fakeSink{name: "healthy"}
	fanout := NewFanout([]Sink{failing, healthy}, testNotifyConfig(), testMetrics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fanout.Start(ctx)

	fanout.Dispatch(testEvent("evt-1"))
	fanout.Dispatch(testEvent("evt-2"))

	waitFor(t, func() bool { return healthy.count() == 2 })
	assert.Equal(t, 0, failing.count())
	fanout.Stop()
}

func TestFanout_RateLimitDropsExcessEvents(t *testing.T) {
	sink := &fakeSink{name: "limited"}
	cfg := testNotifyConfig()
	cfg.RatePerMinute = 1
	fanout := NewFanout([]Sink{sink}, cfg, testMetrics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fanout.Start(ctx)

	for i := 0; i < 5; i++ {
		fanout.Dispatch(testEvent("evt"))
	}
	fanout.Stop()

	// The limiter starts with one token; the rest are dropped, never queued
	assert.Equal(t, 1, sink.count())
}

func TestBuildSinks(t *testing.T) {
	log := zap.NewNop()

	sinks := BuildSinks(config.NotifyConfig{}, log)
	assert.Empty(t, sinks)

	sinks = BuildSinks(config.NotifyConfig{
		SlackWebhookURL: "https://hooks.slack.com/services/x",
		WebhookURL:      "https://example.com/hook",
		Timeout:         time.Second,
	}, log)
	require.Len(t, sinks, 2)
	assert.Equal(t, "slack", sinks[0].Name())
	assert.Equal(t, "webhook", sinks[1].Name())
}
