package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 RPS = one token every 100ms, burst 1.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "10.0.0.1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "10.0.0.1"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentClients(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "10.0.0.1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "10.0.0.2"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "second client blocked unexpectedly")
	require.Equal(t, 2, l.Clients())
}

func TestLimiter_ContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "client"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorContains(t, l.Wait(ctx, "client"), "rate limit wait")
}

func TestLimiter_NonPositiveRPSIsUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for range 100 {
		require.NoError(t, l.Wait(context.Background(), ""))
	}
	require.Equal(t, 1, l.Clients())
}

func TestMiddlewareRejectsWhenContextExpires(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/send_job", nil)
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMiddlewareIgnoresForwardedHeaderByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	codes := make([]int, 0, 5)
	for i := range 5 {
		req := httptest.NewRequest(http.MethodPost, "/api/send_job", nil).WithContext(ctx)
		req.RemoteAddr = "192.0.2.7:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	require.Equal(t, http.StatusOK, codes[0])
	for _, code := range codes[1:] {
		require.Equal(t, http.StatusTooManyRequests, code)
	}
	require.Equal(t, 1, l.Clients())
}

func TestLimiter_EvictsIdleBuckets(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(Config{DefaultRPS: 1, DefaultBurst: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "10.0.0.1"))
	require.NoError(t, l.Wait(ctx, "10.0.0.2"))
	require.Equal(t, 2, l.Clients())

	now = now.Add(2 * time.Minute)
	require.NoError(t, l.Wait(ctx, "10.0.0.3"))
	require.Equal(t, 1, l.Clients())
}

func TestLimiter_MaxClientsEvictsLeastRecentlySeen(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(Config{MaxClients: 2})
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for _, client := range []string{"a", "b", "a", "c"} {
		now = now.Add(time.Second)
		require.NoError(t, l.Wait(ctx, client))
	}

	require.Equal(t, 2, l.Clients())
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Contains(t, l.buckets, "a")
	require.Contains(t, l.buckets, "c")
	require.NotContains(t, l.buckets, "b")
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	require.Equal(t, "192.0.2.7", ClientKey(req, false))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "192.0.2.7", ClientKey(req, false))
	require.Equal(t, "203.0.113.9", ClientKey(req, true))

	req.Header.Set("X-Forwarded-For", " , 10.0.0.1")
	require.Equal(t, "192.0.2.7", ClientKey(req, true))

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = "pipe"
	require.Equal(t, "pipe", ClientKey(bare, true))

	trusting := New(Config{TrustForwarded: true})
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "203.0.113.9", trusting.Key(req))
}
