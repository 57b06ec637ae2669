package imap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
)

var testMetrics = monitoring.NewMetrics()

type nopPipeline struct{}

func (nopPipeline) HandleRaw(context.Context, string, []byte, string, bool) error {
	return nil
}

func TestSupervisor_RestartsUntilCancelled(t *testing.T) {
	// 不可达端口：每次会话以连接错误终止，监督器持续退避重启
	account := domain.Account{
		ID:       "a@example.com",
		Host:     "127.0.0.1",
		Port:     1,
		Username: "u",
		Password: "p",
	}
	cfg := config.IMAPConfig{
		Folder:      "INBOX",
		AuthTimeout: 100 * time.Millisecond,
		MinBackoff:  10 * time.Millisecond,
		MaxBackoff:  50 * time.Millisecond,
	}

	sv := NewSupervisor([]domain.Account{account}, cfg, nopPipeline{}, testMetrics, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err, "supervisor exits cleanly on cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after context cancellation")
	}
}

func TestSession_ConnectFailureIsConnectionError(t *testing.T) {
	account := domain.Account{
		ID:       "a@example.com",
		Host:     "127.0.0.1",
		Port:     1,
		Username: "u",
		Password: "p",
	}
	cfg := config.IMAPConfig{Folder: "INBOX", AuthTimeout: 100 * time.Millisecond}

	session := NewSession(account, cfg, nopPipeline{}, testMetrics, zap.NewNop())
	err := session.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.Equal(t, StateError, session.State())
}
