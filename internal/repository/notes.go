package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
)

// ListNotes returns the user's own notes plus every note placed in a topic
// the user owns or has joined.
func (r *Repository) ListNotes(ctx context.Context, userID uint64) ([]db.Note, error) {
	visible, err := visibleNotes(userID)
	if err != nil {
		return nil, err
	}
	sql, args, err := squirrel.
		Select("*").From("notes").
		Where(visible).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	notes := make([]db.Note, 0)
	if res := r.db.WithContext(ctx).Raw(sql, args...).Scan(&notes); res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	return notes, nil
}

func (r *Repository) GetNote(ctx context.Context, noteID uint64) (*db.Note, error) {
	note := db.Note{}
	if res := r.db.WithContext(ctx).First(&note, noteID); res.Error != nil {
		return nil, notFoundOr(res.Error, "find note")
	}
	return &note, nil
}

func (r *Repository) CreateNote(ctx context.Context, note *db.Note) error {
	if res := r.db.WithContext(ctx).Create(note); res.Error != nil {
		return errors.Wrap(res.Error, "create note")
	}
	return nil
}

// NoteScope narrows which rows a note update may touch.
type NoteScope int

const (
	// ScopeOwner matches only notes owned by the acting user.
	ScopeOwner NoteScope = iota
	// ScopeVisible matches any note the acting user can see.
	ScopeVisible
)

// UpdateNote applies fields in one statement conditioned on scope, so the
// authorization and the write cannot interleave with another writer. The
// bool is false when the condition matched nothing.
func (r *Repository) UpdateNote(ctx context.Context, userID, noteID uint64, scope NoteScope, fields map[string]interface{}) (bool, error) {
	var cond squirrel.Sqlizer = squirrel.Eq{"owner_id": userID}
	if scope == ScopeVisible {
		visible, err := visibleNotes(userID)
		if err != nil {
			return false, err
		}
		cond = visible
	}
	sql, args, err := squirrel.And{squirrel.Eq{"id": noteID}, cond}.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build sql")
	}

	res := r.db.WithContext(ctx).Model(&db.Note{}).Where(sql, args...).Updates(fields)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update note")
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) DeleteNote(ctx context.Context, ownerID, noteID uint64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", noteID, ownerID).Delete(&db.Note{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "delete note")
	}
	return res.RowsAffected > 0, nil
}
