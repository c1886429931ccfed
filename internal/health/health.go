// Package health exposes the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

// Handler probes Postgres and Redis for the readiness endpoint.
type Handler struct {
	Pool         *pgxpool.Pool
	Redis        *redis.Client
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports process liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency pings.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"db":    h.pingDB(r.Context()),
		"redis": h.pingRedis(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	if status["db"] != "ok" || status["redis"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) pingDB(ctx context.Context) string {
	if h.Pool == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, orDefault(h.DBTimeout, 500*time.Millisecond))
	defer cancel()
	if err := h.Pool.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

func (h Handler) pingRedis(ctx context.Context) string {
	if h.Redis == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond))
	defer cancel()
	if err := h.Redis.Ping(ctx).Err(); err != nil {
		return err.Error()
	}
	return "ok"
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
