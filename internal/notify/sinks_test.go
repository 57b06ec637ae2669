package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebox/backend/internal/domain"
)

func TestSlackSink_Deliver(t *testing.T) {
	var payload slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewSlackSink(srv.URL, 2*time.Second)
	event := domain.NotificationEvent{
		ID:      "evt-1",
		From:    "alice@example.com",
		Subject: "Demo request",
		Date:    time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, sink.Deliver(context.Background(), event))
	assert.Contains(t, payload.Text, "alice@example.com")
	assert.Contains(t, payload.Text, "Demo request")
}

func TestSlackSink_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewSlackSink(srv.URL, 2*time.Second)
	err := sink.Deliver(context.Background(), domain.NotificationEvent{ID: "evt-1"})
	assert.Error(t, err)
}

func TestWebhookSink_DeliverWithSignature(t *testing.T) {
	const secret = "hook-secret"

	var gotBody []byte
	var gotSignature, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotID = r.Header.Get("X-Webhook-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, secret, 2*time.Second)
	event := domain.NotificationEvent{
		ID:      "evt-42",
		From:    "alice@example.com",
		Subject: "Demo request",
		Date:    time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		Text:    "let's talk",
	}
	require.NoError(t, sink.Deliver(context.Background(), event))

	assert.Equal(t, "evt-42", gotID)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "alice@example.com", payload.From)
	assert.Equal(t, "Demo request", payload.Subject)
	assert.Equal(t, "2026-08-30T09:00:00Z", payload.Date)
	assert.Equal(t, "let's talk", payload.Text)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestWebhookSink_NoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "", 2*time.Second)
	require.NoError(t, sink.Deliver(context.Background(), domain.NotificationEvent{ID: "evt-1"}))
	assert.Empty(t, gotSignature)
}
