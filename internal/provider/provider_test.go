package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfig_APIBase(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"", "https://api.mistral.ai/v1/"},
		{"https://api.mistral.ai", "https://api.mistral.ai/v1/"},
		{"https://api.mistral.ai/", "https://api.mistral.ai/v1/"},
		{"http://localhost:8080/v1", "http://localhost:8080/v1/"},
		{"http://localhost:8080/v1/", "http://localhost:8080/v1/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Config{BaseURL: tt.base}.APIBase(), "base %q", tt.base)
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(0))
	assert.Equal(t, 3*time.Second, Backoff(1))
	assert.Equal(t, 5*time.Second, Backoff(2))
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
	l = NewLimiter(1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

// flakyServer answers the embeddings endpoint with the given status codes, then succeeds.
func flakyServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		w.Header().Set("Content-Type", "application/json")
		if n <= len(statuses) {
			w.Header().Set(HeaderRetryAfter, "0")
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":{"message":"try later"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func embedOnce(client openai.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{"x"}},
			Model: openai.EmbeddingModel("m"),
		})
		return err
	}
}

func TestRetrier_RetriesTransientErrors(t *testing.T) {
	srv, calls := flakyServer(t, http.StatusTooManyRequests, http.StatusBadGateway)
	cfg := Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 3}
	r := NewRetrier(cfg, zap.NewNop()).WithBackoff(func(int) time.Duration { return 0 })

	ctx := context.Background()
	err := r.Do(ctx, "embed", embedOnce(NewClient(cfg)))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrier_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := flakyServer(t, 429, 429, 429, 429, 429)
	cfg := Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2}
	r := NewRetrier(cfg, nil).WithBackoff(func(int) time.Duration { return 0 })

	ctx := context.Background()
	err := r.Do(ctx, "embed", embedOnce(NewClient(cfg)))
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Contains(t, err.Error(), "embed")
}

func TestRetrier_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := flakyServer(t, http.StatusUnauthorized)
	cfg := Config{BaseURL: srv.URL, APIKey: "bad", MaxRetries: 3}
	r := NewRetrier(cfg, nil).WithBackoff(func(int) time.Duration { return 0 })

	ctx := context.Background()
	err := r.Do(ctx, "embed", embedOnce(NewClient(cfg)))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, IsRetryable(err))
}

func TestRetrier_BackoffHonoursContext(t *testing.T) {
	r := NewRetrier(Config{MaxRetries: 3}, nil).WithBackoff(func(int) time.Duration { return time.Hour })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Do(ctx, "chat", func(context.Context) error { return context.DeadlineExceeded })
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.Equal(t, 0, StatusCode(errors.New("boom")))
}
