package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carenotes/veil/internal/config"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore persists session mappings in Redis so several gateway
// instances can serve the same session. Entries expire with the configured
// TTL, bounding the lifetime of any mapping to roughly one working session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.SessionConfig, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	store := &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Session store initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("ttl", cfg.TTL))

	return store, nil
}

// Get fetches and decodes the mapping for a session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*mapping.Mapping, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	m := mapping.New()
	if err := json.Unmarshal([]byte(data), m); err != nil {
		// A corrupted entry cannot be restored; drop it so the session
		// starts over rather than deanonymizing with garbage.
		s.client.Del(ctx, s.key(sessionID))
		s.logger.Error("Corrupted session mapping dropped",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil, ErrNotFound
	}
	return m, nil
}

// Set stores the mapping with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, sessionID string, m *mapping.Mapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store mapping: %w", err)
	}

	s.logger.Debug("Session mapping stored",
		zap.String("session_id", sessionID),
		zap.Int("entries", m.Len()))
	return nil
}

// Clear removes the session's mapping.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear mapping: %w", err)
	}
	s.logger.Debug("Session mapping cleared", zap.String("session_id", sessionID))
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
