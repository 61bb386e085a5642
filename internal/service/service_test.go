package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
)

type fixture struct {
	auth  *Auth
	board *Board
	repo  *repository.Repository
	cache *memoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.New(dbtest.New(t))
	cache := newMemoryCache()
	l := zap.NewNop().Sugar()
	return &fixture{
		auth:  NewAuth(repo, cache, &config.Config{BcryptCost: bcrypt.MinCost}, l),
		board: NewBoard(repo, l),
		repo:  repo,
		cache: cache,
	}
}

func (f *fixture) register(t *testing.T, email string) (*db.User, *repository.TopicView) {
	t.Helper()
	user, topic, err := f.auth.Register(context.Background(), email, "secret")
	require.NoError(t, err)
	return user, topic
}

type memoryCache struct {
	users map[string]db.User
}

func newMemoryCache() *memoryCache {
	return &memoryCache{users: make(map[string]db.User)}
}

func (c *memoryCache) Lookup(_ context.Context, hash string) (*db.User, error) {
	u, ok := c.users[hash]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (c *memoryCache) Save(_ context.Context, hash string, user *db.User) error {
	c.users[hash] = *user
	return nil
}

func (c *memoryCache) Revoke(_ context.Context, hash string) error {
	delete(c.users, hash)
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
