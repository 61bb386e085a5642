package repository

import (
	"crypto/rand"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

var (
	Module = fx.Provide(
		New,
	)
)

const (
	shareCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	shareCodeLength   = 8
	shareCodeAttempts = 5
)

// Repository is the data-access layer for users, topics and notes.
// Everything that decides visibility is expressed as a single SQL predicate
// so that scoped reads and conditional writes stay single-statement.
type Repository struct {
	db           *gorm.DB
	newShareCode func() (string, error)
}

func New(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		newShareCode: GenerateShareCode,
	}
}

// GenerateShareCode draws a short invite code from crypto/rand.
func GenerateShareCode() (string, error) {
	buf := make([]byte, shareCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	for i := range buf {
		buf[i] = shareCodeAlphabet[int(buf[i])%len(shareCodeAlphabet)]
	}
	return string(buf), nil
}

// accessibleTopicIDs selects ids of topics the user owns or has joined.
func accessibleTopicIDs(userID uint64) (string, []interface{}, error) {
	sql, args, err := squirrel.
		Select("t.id").From("topics t").
		LeftJoin("topic_members m ON m.topic_id = t.id").
		Where(squirrel.Or{
			squirrel.Eq{"t.owner_id": userID},
			squirrel.Eq{"m.user_id": userID},
		}).
		ToSql()
	if err != nil {
		return "", nil, errors.Wrap(err, "build topic sql")
	}
	return sql, args, nil
}

// visibleNotes is the note read rule: owned by the user, or placed in a
// topic the user can access.
func visibleNotes(userID uint64) (squirrel.Sqlizer, error) {
	sub, args, err := accessibleTopicIDs(userID)
	if err != nil {
		return nil, err
	}
	return squirrel.Or{
		squirrel.Eq{"owner_id": userID},
		squirrel.Expr("topic_id IN ("+sub+")", args...),
	}, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}
