package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
)

// TopicView is a topic with its member set loaded.
type TopicView struct {
	db.Topic
	Members []uint64
}

// HasMember reports whether userID is the owner or in the member set.
func (t *TopicView) HasMember(userID uint64) bool {
	if t.OwnerID == userID {
		return true
	}
	for _, id := range t.Members {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Repository) ListTopics(ctx context.Context, userID uint64) ([]TopicView, error) {
	sub, args, err := accessibleTopicIDs(userID)
	if err != nil {
		return nil, err
	}
	sql, args, err := squirrel.
		Select("*").From("topics").
		Where("id IN ("+sub+")", args...).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	topics := make([]db.Topic, 0)
	if res := r.db.WithContext(ctx).Raw(sql, args...).Scan(&topics); res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	return r.withMembers(r.db.WithContext(ctx), topics)
}

func (r *Repository) GetTopic(ctx context.Context, topicID uint64) (*TopicView, error) {
	return r.getTopic(r.db.WithContext(ctx), "id = ?", topicID)
}

func (r *Repository) TopicByShareCode(ctx context.Context, code string) (*TopicView, error) {
	return r.getTopic(r.db.WithContext(ctx), "share_code = ?", code)
}

func (r *Repository) CreateTopic(ctx context.Context, ownerID uint64, name string) (*TopicView, error) {
	var view *TopicView
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := r.createTopic(tx, ownerID, name)
		view = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RenameTopic only matches rows owned by ownerID; the bool is false when
// nothing matched.
func (r *Repository) RenameTopic(ctx context.Context, ownerID, topicID uint64, name string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&db.Topic{}).
		Where("id = ? AND owner_id = ?", topicID, ownerID).
		Update("name", name)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "rename topic")
	}
	return res.RowsAffected > 0, nil
}

// DeleteTopic removes an owned topic and its member set, and detaches every
// note that referenced it whoever owns the note.
func (r *Repository) DeleteTopic(ctx context.Context, ownerID, topicID uint64) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", topicID, ownerID).Delete(&db.Topic{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete topic")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true

		res = tx.Model(&db.Note{}).Where("topic_id = ?", topicID).Update("topic_id", nil)
		if res.Error != nil {
			return errors.Wrap(res.Error, "detach notes")
		}
		res = tx.Where("topic_id = ?", topicID).Delete(&db.TopicMember{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete members")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// AddMember inserts the membership row unless it already exists.
func (r *Repository) AddMember(ctx context.Context, topicID, userID uint64) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.TopicMember{TopicID: topicID, UserID: userID})
	if res.Error != nil {
		return errors.Wrap(res.Error, "add member")
	}
	return nil
}

func (r *Repository) createTopic(tx *gorm.DB, ownerID uint64, name string) (*TopicView, error) {
	code, err := r.freshShareCode(tx)
	if err != nil {
		return nil, err
	}

	topic := db.Topic{
		Name:      name,
		OwnerID:   ownerID,
		ShareCode: code,
	}
	if res := tx.Create(&topic); res.Error != nil {
		return nil, errors.Wrap(res.Error, "create topic")
	}
	if res := tx.Create(&db.TopicMember{TopicID: topic.ID, UserID: ownerID}); res.Error != nil {
		return nil, errors.Wrap(res.Error, "create owner membership")
	}

	return &TopicView{
		Topic:   topic,
		Members: []uint64{ownerID},
	}, nil
}

func (r *Repository) freshShareCode(tx *gorm.DB) (string, error) {
	for i := 0; i < shareCodeAttempts; i++ {
		code, err := r.newShareCode()
		if err != nil {
			return "", errors.Wrap(err, "generate share code")
		}
		var count int64
		if res := tx.Model(&db.Topic{}).Where("share_code = ?", code).Count(&count); res.Error != nil {
			return "", errors.Wrap(res.Error, "check share code")
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique share code")
}

func (r *Repository) getTopic(tx *gorm.DB, query string, arg interface{}) (*TopicView, error) {
	topic := db.Topic{}
	if res := tx.Where(query, arg).First(&topic); res.Error != nil {
		return nil, notFoundOr(res.Error, "find topic")
	}
	views, err := r.withMembers(tx, []db.Topic{topic})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *Repository) withMembers(tx *gorm.DB, topics []db.Topic) ([]TopicView, error) {
	views := make([]TopicView, len(topics))
	if len(topics) == 0 {
		return views, nil
	}

	ids := make([]uint64, len(topics))
	index := make(map[uint64]int, len(topics))
	for i := range topics {
		ids[i] = topics[i].ID
		index[topics[i].ID] = i
		views[i] = TopicView{Topic: topics[i], Members: make([]uint64, 0, 1)}
	}

	members := make([]db.TopicMember, 0)
	res := tx.Where("topic_id IN ?", ids).Order("topic_id, created_at, user_id").Find(&members)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "load members")
	}
	for _, m := range members {
		i := index[m.TopicID]
		views[i].Members = append(views[i].Members, m.UserID)
	}
	return views, nil
}
