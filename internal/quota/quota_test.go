package quota

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLimiter_Check(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewLimiter(client, Config{MaxPerWindow: 2, Window: time.Hour}, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := limiter.Check(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.CurrentCount)
	}

	res, err := limiter.Check(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.CurrentCount)
	assert.Contains(t, res.Message, "exceeded 2 analyses")

	other, err := limiter.Check(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLimiter_WindowExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewLimiter(client, Config{MaxPerWindow: 1, Window: time.Minute}, nil)
	ctx := context.Background()

	_, _ = limiter.Check(ctx, "c")
	res, _ := limiter.Check(ctx, "c")
	assert.False(t, res.Allowed)

	mr.FastForward(2 * time.Minute)
	res, _ = limiter.Check(ctx, "c")
	assert.True(t, res.Allowed)
}

func TestLimiter_FailsOpen(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewLimiter(client, Config{MaxPerWindow: 1, Window: time.Minute}, nil)
	mr.Close()

	for i := 0; i < 3; i++ {
		res, err := limiter.Check(context.Background(), "c")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, "quota check unavailable", res.Message)
	}
}

func TestLimiter_ResetAndStats(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewLimiter(client, Config{MaxPerWindow: 5, Window: time.Hour}, nil)
	ctx := context.Background()

	stats, err := limiter.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CurrentCount)

	_, _ = limiter.Check(ctx, "c")
	_, _ = limiter.Check(ctx, "c")
	stats, err = limiter.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CurrentCount)

	require.NoError(t, limiter.Reset(ctx, "c"))
	stats, err = limiter.Stats(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CurrentCount)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(nil, DefaultConfig(), nil)
	res, err := limiter.Check(context.Background(), "c")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiter_Middleware(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewLimiter(client, Config{MaxPerWindow: 1, Window: time.Hour}, nil)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
		req.Header.Set("X-Client-ID", "care-desk-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send().Code)
	rr := send()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4312"
	assert.Equal(t, "10.0.0.5", ClientID(req))

	req.Header.Set("X-Client-ID", "desk")
	assert.Equal(t, "desk", ClientID(req))
}
