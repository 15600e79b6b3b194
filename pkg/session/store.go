package session

import (
	"context"
	"time"

	"saas-admin/pkg/config"
	"saas-admin/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a best-effort registry of issued refresh tokens, backed by Redis.
// When no Redis address is configured every operation is a no-op: logout then
// only has client-side effect and refresh tokens stay valid until expiry.
//
// Registry failures never fail the caller; they are logged and swallowed.
type Store struct {
	client *redis.Client
}

var store = &Store{}

// Initialize connects the registry if cfg.Redis.Addr is set. A failed ping is
// logged but does not abort startup; the registry simply stays disabled.
func Initialize(cfg *config.Config) {
	if cfg.Redis.Addr == "" {
		logger.GetLogger().Info("Session registry disabled, no REDIS_ADDR configured")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().Warn("Session registry unreachable, continuing without it", zap.Error(err))
		return
	}

	store.client = client
	logger.GetLogger().Info("Session registry connected", zap.String("addr", cfg.Redis.Addr))
}

// Get returns the process-wide registry.
func Get() *Store {
	return store
}

// Enabled reports whether a Redis backend is connected.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

func sessionKey(domain, jti string) string {
	return "session:" + domain + ":" + jti
}

// Record registers a refresh token jti for the given domain with the token's
// remaining lifetime.
func (s *Store) Record(ctx context.Context, domain, jti string, ttl time.Duration) {
	if !s.Enabled() || jti == "" {
		return
	}
	if err := s.client.Set(ctx, sessionKey(domain, jti), "1", ttl).Err(); err != nil {
		logger.GetLogger().Warn("Failed to record session", zap.String("domain", domain), zap.Error(err))
	}
}

// Revoke removes a refresh token jti. Missing keys are fine: logout is
// idempotent and best-effort.
func (s *Store) Revoke(ctx context.Context, domain, jti string) {
	if !s.Enabled() || jti == "" {
		return
	}
	if err := s.client.Del(ctx, sessionKey(domain, jti)).Err(); err != nil {
		logger.GetLogger().Warn("Failed to revoke session", zap.String("domain", domain), zap.Error(err))
	}
}

// Live reports whether a refresh token jti is still registered. With the
// registry disabled every token is considered live; a registry error also
// answers live so an outage cannot lock users out.
func (s *Store) Live(ctx context.Context, domain, jti string) bool {
	if !s.Enabled() || jti == "" {
		return true
	}
	n, err := s.client.Exists(ctx, sessionKey(domain, jti)).Result()
	if err != nil {
		logger.GetLogger().Warn("Failed to check session", zap.String("domain", domain), zap.Error(err))
		return true
	}
	return n > 0
}
