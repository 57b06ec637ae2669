package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
)

// completionServer returns a chat-completions style server that always
// replies with the given content.
func completionServer(t *testing.T, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, float64(0), req.Temperature)

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestLLM(t *testing.T, endpoint string) *LLMClassifier {
	t.Helper()
	c, err := NewLLMClassifier(config.ClassifierConfig{
		Mode:     "llm",
		Endpoint: endpoint,
		Timeout:  2 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestLLMClassifier_RecognizedLabel(t *testing.T) {
	srv := completionServer(t, "Interested", nil)
	defer srv.Close()

	c := newTestLLM(t, srv.URL)
	assert.Equal(t, domain.LabelInterested, c.Classify(context.Background(), "sounds great"))
}

func TestLLMClassifier_UnrecognizedReplyCoerced(t *testing.T) {
	srv := completionServer(t, "I think this email is promotional.", nil)
	defer srv.Close()

	c := newTestLLM(t, srv.URL)
	assert.Equal(t, domain.LabelNotInterested, c.Classify(context.Background(), "buy now"))
}

func TestLLMClassifier_BackendErrorFallsBackToUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestLLM(t, srv.URL)
	assert.Equal(t, domain.LabelUnknown, c.Classify(context.Background(), "anything"))
}

func TestLLMClassifier_UnreachableEndpointFallsBackToUnknown(t *testing.T) {
	c := newTestLLM(t, "http://127.0.0.1:1/v1/chat/completions")
	assert.Equal(t, domain.LabelUnknown, c.Classify(context.Background(), "anything"))
}

func TestLLMClassifier_RequiresEndpoint(t *testing.T) {
	_, err := NewLLMClassifier(config.ClassifierConfig{Mode: "llm"}, zap.NewNop())
	assert.Error(t, err)
}

func TestCachedClassifier_AvoidsRepeatCalls(t *testing.T) {
	var calls atomic.Int32
	srv := completionServer(t, "Spam", &calls)
	defer srv.Close()

	cached := newCachedClassifier(newTestLLM(t, srv.URL), 16, time.Hour)

	// Same body classified twice hits the backend once
	assert.Equal(t, domain.LabelSpam, cached.Classify(context.Background(), "win a prize"))
	assert.Equal(t, domain.LabelSpam, cached.Classify(context.Background(), "win a prize"))
	assert.Equal(t, int32(1), calls.Load())

	// Different body is a cache miss
	assert.Equal(t, domain.LabelSpam, cached.Classify(context.Background(), "another prize"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNew_SelectsStrategy(t *testing.T) {
	rule, err := New(config.ClassifierConfig{Mode: "rule"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RuleClassifier{}, rule)

	_, err = New(config.ClassifierConfig{Mode: "llm"}, zap.NewNop())
	assert.Error(t, err, "llm mode without endpoint must fail")

	_, err = New(config.ClassifierConfig{Mode: "magic"}, zap.NewNop())
	assert.Error(t, err)
}
