// Package session caches token lookups in Redis so authenticated requests
// skip the users table.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
)

const keyPrefix = "session:"

var (
	Module = fx.Provide(
		NewCache,
	)
)

// TokenData is what gets stored per token hash. The password hash never
// leaves the database.
type TokenData struct {
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache returns the Redis store when REDIS_URL is set and a no-op cache
// otherwise.
func NewCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.SugaredLogger) (service.SessionCache, error) {
	if cfg.RedisURL == "" {
		logger.Info("Session cache disabled.")
		return service.NopSessionCache{}, nil
	}

	store, err := NewRedisStore(cfg.RedisURL, cfg.SessionCacheTTL)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return errors.Wrap(err, "connect to redis")
			}
			logger.Info("Session cache connected.")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: keyPrefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Save caches the user under the token hash for the configured TTL.
func (s *RedisStore) Save(ctx context.Context, tokenHash string, user *db.User) error {
	data, err := json.Marshal(TokenData{
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal token data")
	}

	if err := s.client.Set(ctx, s.key(tokenHash), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

// Lookup returns nil, nil on a miss or an expired entry.
func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (*db.User, error) {
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup session")
	}

	var data TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "unmarshal token data")
	}

	hash := tokenHash
	user := &db.User{
		Email: data.Email,
		Token: &hash,
	}
	user.ID = data.UserID
	user.CreatedAt = data.CreatedAt
	return user, nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return errors.Wrap(err, "revoke session")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
