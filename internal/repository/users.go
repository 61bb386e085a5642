package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
)

// CreateUserWithTopic stores a new user together with the user's first topic.
// Both rows are written in one transaction so a user never exists without it.
func (r *Repository) CreateUserWithTopic(ctx context.Context, user *db.User, topicName string) (*TopicView, error) {
	var view *TopicView
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res := tx.Create(user); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return errors.Wrap(res.Error, "create user")
		}
		created, err := r.createTopic(tx, user.ID, topicName)
		if err != nil {
			return err
		}
		view = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (*db.User, error) {
	user := db.User{}
	res := r.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if res.Error != nil {
		return nil, notFoundOr(res.Error, "find user by email")
	}
	return &user, nil
}

func (r *Repository) UserByID(ctx context.Context, id uint64) (*db.User, error) {
	user := db.User{}
	res := r.db.WithContext(ctx).First(&user, id)
	if res.Error != nil {
		return nil, notFoundOr(res.Error, "find user by id")
	}
	return &user, nil
}

func (r *Repository) UserByToken(ctx context.Context, tokenHash string) (*db.User, error) {
	user := db.User{}
	res := r.db.WithContext(ctx).Where("token = ?", tokenHash).First(&user)
	if res.Error != nil {
		return nil, notFoundOr(res.Error, "find user by token")
	}
	return &user, nil
}

// SetToken overwrites the user's single session token; nil clears it.
func (r *Repository) SetToken(ctx context.Context, userID uint64, tokenHash *string) error {
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Update("token", tokenHash)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update token")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
