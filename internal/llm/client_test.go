package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(endpoint string) *Client {
	return NewClient(ClientOptions{
		Name:              "test-provider",
		Endpoint:          endpoint,
		Model:             "test-model",
		APIKey:            "test-key",
		RequestsPerMinute: 100,
	})
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"generated text"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		Messages:     []ChatMessage{{Role: "user", Content: "hello"}},
		Temperature:  0.7,
	})

	require.NoError(t, err)
	assert.Equal(t, "generated text", result)
}

func TestClient_Complete_StatusClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		expectedKind ProviderErrorKind
		retryable    bool
	}{
		{"Unauthorized", 401, KindAuthFailure, false},
		{"Forbidden", 403, KindAuthFailure, false},
		{"Rate limited", 429, KindQuotaExceeded, true},
		{"Model missing", 404, KindModelUnavailable, false},
		{"Service unavailable", 503, KindModelUnavailable, false},
		{"Gateway timeout", 504, KindTimeout, true},
		{"Server error", 500, KindGeneric, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.Complete(context.Background(), CompletionRequest{
				Messages: []ChatMessage{{Role: "user", Content: "hi"}},
			})

			require.Error(t, err)
			pe, ok := AsProviderError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedKind, pe.Kind)
			assert.Equal(t, tt.retryable, pe.Retryable())
		})
	}
}

func TestClient_Complete_Misconfigured(t *testing.T) {
	client := NewClient(ClientOptions{Name: "broken"})

	_, err := client.Complete(context.Background(), CompletionRequest{})

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuthFailure, pe.Kind)
	assert.False(t, pe.Retryable())
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{})

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindGeneric, pe.Kind)
}

func TestClient_Complete_ProviderErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"The model does not exist","code":"model_not_found"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{})

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindModelUnavailable, pe.Kind)
	assert.Contains(t, pe.Message, "does not exist")
}

func TestClient_Complete_LocalRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		Name:              "limited",
		Endpoint:          server.URL,
		Model:             "m",
		APIKey:            "k",
		RequestsPerMinute: 2,
	})

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), CompletionRequest{})
		require.NoError(t, err)
	}

	_, err := client.Complete(context.Background(), CompletionRequest{})
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindQuotaExceeded, pe.Kind)
	assert.Equal(t, 2, calls, "third request never reaches the provider")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	limiter := newRateLimiter(1, 50*time.Millisecond)

	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Allow(), "window rollover restores capacity")
}

func TestProviderError_Retryable(t *testing.T) {
	tests := []struct {
		kind      ProviderErrorKind
		retryable bool
	}{
		{KindQuotaExceeded, true},
		{KindTimeout, true},
		{KindGeneric, true},
		{KindAuthFailure, false},
		{KindModelUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &ProviderError{Provider: "p", Kind: tt.kind}
			assert.Equal(t, tt.retryable, err.Retryable())
		})
	}
}
