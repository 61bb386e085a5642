package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
)

const (
	DefaultTopicName = "General"
	tokenBytes       = 32
)

type Auth struct {
	store      Store
	cache      SessionCache
	bcryptCost int
	logger     *zap.SugaredLogger
}

func NewAuth(store Store, cache SessionCache, cfg *config.Config, l *zap.SugaredLogger) *Auth {
	return &Auth{
		store:      store,
		cache:      cache,
		bcryptCost: cfg.BcryptCost,
		logger:     l,
	}
}

// Register stores a new user and the user's default topic.
func (s *Auth) Register(ctx context.Context, email, pass string) (*db.User, *repository.TopicView, error) {
	email = strings.TrimSpace(email)
	if email == "" || pass == "" {
		return nil, nil, fail(ErrInvalidInput, "email and password are required")
	}

	_, err := s.store.UserByEmail(ctx, email)
	if err == nil {
		return nil, nil, fail(ErrConflict, "email already registered")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, errors.Wrap(err, "check email")
	}

	hash, err := s.bcryptGen(pass)
	if err != nil {
		return nil, nil, errors.Wrap(err, "bcryptGen")
	}

	user := &db.User{
		Email:    email,
		Password: hash,
	}
	topic, err := s.store.CreateUserWithTopic(ctx, user, DefaultTopicName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, fail(ErrConflict, "email already registered")
		}
		return nil, nil, errors.Wrap(err, "create user")
	}

	s.logger.Infow("user registered", "user_id", user.ID, "topic_id", topic.ID)
	return user, topic, nil
}

// Login checks credentials and replaces the user's session token. The old
// token stops working immediately.
func (s *Auth) Login(ctx context.Context, email, pass string) (string, *db.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || pass == "" {
		return "", nil, fail(ErrInvalidCredentials, "invalid email or password")
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fail(ErrInvalidCredentials, "invalid email or password")
		}
		return "", nil, errors.Wrap(err, "find user")
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return "", nil, fail(ErrInvalidCredentials, "invalid email or password")
	}

	token, err := generateToken()
	if err != nil {
		return "", nil, errors.Wrap(err, "generate token")
	}
	hash := HashToken(token)

	previous := user.Token
	if err := s.store.SetToken(ctx, user.ID, &hash); err != nil {
		return "", nil, errors.Wrap(err, "update token")
	}
	user.Token = &hash

	if previous != nil {
		s.revokeCached(ctx, *previous)
	}
	if err := s.cache.Save(ctx, hash, user); err != nil {
		s.logger.Warnw("session cache save failed", "user_id", user.ID, "error", err)
	}

	s.logger.Infow("user logged in", "user_id", user.ID)
	return token, user, nil
}

// Authenticate resolves a session token to its user. An unknown token is not
// an error: it yields a nil user.
func (s *Auth) Authenticate(ctx context.Context, token string) (*db.User, error) {
	if token == "" {
		return nil, nil
	}
	hash := HashToken(token)

	cached, err := s.cache.Lookup(ctx, hash)
	if err != nil {
		s.logger.Warnw("session cache lookup failed", "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	user, err := s.store.UserByToken(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find user by token")
	}

	if err := s.cache.Save(ctx, hash, user); err != nil {
		s.logger.Warnw("session cache save failed", "user_id", user.ID, "error", err)
		return user, nil
	}
	if _, nop := s.cache.(NopSessionCache); nop {
		return user, nil
	}

	// A login or logout that landed after the read above may already have
	// revoked this hash, so the entry just saved must be checked again.
	if _, err := s.store.UserByToken(ctx, hash); err != nil {
		s.revokeCached(ctx, hash)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "recheck token")
	}
	return user, nil
}

// Logout clears the server-side token so it can no longer authenticate.
func (s *Auth) Logout(ctx context.Context, token string) error {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if user == nil {
		return fail(ErrUnauthenticated, "unauthorized")
	}

	if err := s.store.SetToken(ctx, user.ID, nil); err != nil {
		return errors.Wrap(err, "clear token")
	}
	s.revokeCached(ctx, HashToken(token))

	s.logger.Infow("user logged out", "user_id", user.ID)
	return nil
}

func (s *Auth) revokeCached(ctx context.Context, hash string) {
	if err := s.cache.Revoke(ctx, hash); err != nil {
		s.logger.Warnw("session cache revoke failed", "error", err)
	}
}

func (s *Auth) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), s.bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *Auth) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}

// HashToken is the form in which session tokens are stored and cached.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
