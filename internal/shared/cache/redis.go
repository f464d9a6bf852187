package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"docutext-backend/internal/shared/telemetry"
)

// NewRedis connects to redis at addr. An empty addr disables caching and
// returns nil; callers treat a nil client as "no cache". An unreachable
// server is logged and also disables caching rather than failing startup.
func NewRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		telemetry.Error("cache.redis.unreachable", map[string]any{"addr": addr, "err": err.Error()})
		_ = client.Close()
		return nil
	}

	telemetry.Info("cache.redis.connected", map[string]any{"addr": addr})
	return client
}
