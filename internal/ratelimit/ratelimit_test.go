package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

func limited(t *testing.T, max int) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mw := Middleware{
		Limiter: Limiter{Client: client, Prefix: "rl:"},
		Window:  time.Minute,
		Max:     max,
	}
	return mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddlewareEnforcesLimitPerUser(t *testing.T) {
	handler := limited(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "user-a"))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "1", second.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestMiddlewareSeparatesUsers(t *testing.T) {
	handler := limited(t, 1)

	for _, user := range []string{"user-a", "user-b"} {
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req = req.WithContext(common.WithUserID(req.Context(), user))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, "user %s should have their own window", user)
	}
}

func TestMiddlewareFailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	var sawErr bool
	mw := Middleware{
		Limiter: Limiter{Client: client, Prefix: "rl:"},
		Window:  time.Minute,
		Max:     1,
		OnError: func(error) { sawErr = true },
	}
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bookings", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, sawErr)
}
