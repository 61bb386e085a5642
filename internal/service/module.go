package service

import (
	"context"

	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
)

var (
	Module = fx.Provide(
		NewAuth,
		NewBoard,
		func(r *repository.Repository) Store { return r },
	)
)

// Store is everything the services need from persistence.
type Store interface {
	CreateUserWithTopic(ctx context.Context, user *db.User, topicName string) (*repository.TopicView, error)
	UserByEmail(ctx context.Context, email string) (*db.User, error)
	UserByID(ctx context.Context, id uint64) (*db.User, error)
	UserByToken(ctx context.Context, tokenHash string) (*db.User, error)
	SetToken(ctx context.Context, userID uint64, tokenHash *string) error

	ListTopics(ctx context.Context, userID uint64) ([]repository.TopicView, error)
	GetTopic(ctx context.Context, topicID uint64) (*repository.TopicView, error)
	TopicByShareCode(ctx context.Context, code string) (*repository.TopicView, error)
	CreateTopic(ctx context.Context, ownerID uint64, name string) (*repository.TopicView, error)
	RenameTopic(ctx context.Context, ownerID, topicID uint64, name string) (bool, error)
	DeleteTopic(ctx context.Context, ownerID, topicID uint64) (bool, error)
	AddMember(ctx context.Context, topicID, userID uint64) error

	ListNotes(ctx context.Context, userID uint64) ([]db.Note, error)
	GetNote(ctx context.Context, noteID uint64) (*db.Note, error)
	CreateNote(ctx context.Context, note *db.Note) error
	UpdateNote(ctx context.Context, userID, noteID uint64, scope repository.NoteScope, fields map[string]interface{}) (bool, error)
	DeleteNote(ctx context.Context, ownerID, noteID uint64) (bool, error)
}

// SessionCache fronts token lookups. Lookup returns nil on a miss.
type SessionCache interface {
	Lookup(ctx context.Context, tokenHash string) (*db.User, error)
	Save(ctx context.Context, tokenHash string, user *db.User) error
	Revoke(ctx context.Context, tokenHash string) error
}

// NopSessionCache is used when no cache is configured.
type NopSessionCache struct{}

func (NopSessionCache) Lookup(context.Context, string) (*db.User, error) { return nil, nil }
func (NopSessionCache) Save(context.Context, string, *db.User) error      { return nil }
func (NopSessionCache) Revoke(context.Context, string) error              { return nil }
