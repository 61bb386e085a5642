package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/policy"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
)

const (
	MaxTopicNameLength = 20

	ColorYellow = "yellow"
	ColorBlue   = "blue"
	ColorGreen  = "green"
	ColorRed    = "red"

	DefaultX      = 50.0
	DefaultY      = 50.0
	DefaultWidth  = 250.0
	DefaultHeight = 250.0
)

var Colors = []string{ColorYellow, ColorBlue, ColorGreen, ColorRed}

type (
	// NoteInput holds the fields of a new note. Nil geometry takes defaults.
	NoteInput struct {
		Title   string
		Content string
		Color   string
		X       *float64
		Y       *float64
		Width   *float64
		Height  *float64
		TopicID *uint64
	}

	// NotePatch holds the fields present in an update request. Owner and
	// topic are not part of it: they never change after creation.
	NotePatch struct {
		Title   *string
		Content *string
		Color   *string
		X       *float64
		Y       *float64
		Width   *float64
		Height  *float64
	}
)

// TouchesContent reports whether the patch changes anything besides geometry.
func (p NotePatch) TouchesContent() bool {
	return p.Title != nil || p.Content != nil || p.Color != nil
}

func (p NotePatch) Empty() bool {
	return !p.TouchesContent() && p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil
}

// Board serves topics and notes on behalf of an authenticated user.
type Board struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewBoard(store Store, l *zap.SugaredLogger) *Board {
	return &Board{
		store:  store,
		logger: l,
	}
}

func (s *Board) ListTopics(ctx context.Context, user *db.User) ([]repository.TopicView, error) {
	topics, err := s.store.ListTopics(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list topics")
	}
	return topics, nil
}

func (s *Board) CreateTopic(ctx context.Context, user *db.User, name string) (*repository.TopicView, error) {
	name, err := topicName(name)
	if err != nil {
		return nil, err
	}
	topic, err := s.store.CreateTopic(ctx, user.ID, name)
	if err != nil {
		return nil, errors.Wrap(err, "create topic")
	}
	s.logger.Debugw("topic created", "user_id", user.ID, "topic_id", topic.ID)
	return topic, nil
}

func (s *Board) RenameTopic(ctx context.Context, user *db.User, topicID uint64, name string) (*repository.TopicView, error) {
	name, err := topicName(name)
	if err != nil {
		return nil, err
	}
	topic, err := s.topic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if d := policy.Topic(user.ID, topic, policy.ActionRename); !d.Allowed() {
		return nil, denied(d, "topic")
	}

	ok, err := s.store.RenameTopic(ctx, user.ID, topicID, name)
	if err != nil {
		return nil, errors.Wrap(err, "rename topic")
	}
	if !ok {
		return nil, fail(ErrNotFound, "topic not found")
	}
	topic.Name = name
	return topic, nil
}

// DeleteTopic removes the topic; its notes survive with no topic.
func (s *Board) DeleteTopic(ctx context.Context, user *db.User, topicID uint64) error {
	topic, err := s.topic(ctx, topicID)
	if err != nil {
		return err
	}
	if d := policy.Topic(user.ID, topic, policy.ActionDelete); !d.Allowed() {
		return denied(d, "topic")
	}

	ok, err := s.store.DeleteTopic(ctx, user.ID, topicID)
	if err != nil {
		return errors.Wrap(err, "delete topic")
	}
	if !ok {
		return fail(ErrNotFound, "topic not found")
	}
	s.logger.Debugw("topic deleted", "user_id", user.ID, "topic_id", topicID)
	return nil
}

// JoinTopic adds the user to the topic holding code. Joining twice, or
// joining one's own topic, changes nothing.
func (s *Board) JoinTopic(ctx context.Context, user *db.User, code string) (*repository.TopicView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fail(ErrInvalidInput, "code is required")
	}

	topic, err := s.store.TopicByShareCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "invalid share code")
		}
		return nil, errors.Wrap(err, "find topic by code")
	}
	if d := policy.Topic(user.ID, topic, policy.ActionJoin); !d.Allowed() {
		return nil, denied(d, "topic")
	}
	if topic.HasMember(user.ID) {
		return topic, nil
	}

	if err := s.store.AddMember(ctx, topic.ID, user.ID); err != nil {
		return nil, errors.Wrap(err, "join topic")
	}
	topic.Members = append(topic.Members, user.ID)

	s.logger.Infow("topic joined", "user_id", user.ID, "topic_id", topic.ID)
	return topic, nil
}

func (s *Board) ListNotes(ctx context.Context, user *db.User) ([]db.Note, error) {
	notes, err := s.store.ListNotes(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list notes")
	}
	return notes, nil
}

func (s *Board) CreateNote(ctx context.Context, user *db.User, in NoteInput) (*db.Note, error) {
	note := db.Note{
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Color:   in.Color,
		X:       valueOr(in.X, DefaultX),
		Y:       valueOr(in.Y, DefaultY),
		Width:   valueOr(in.Width, DefaultWidth),
		Height:  valueOr(in.Height, DefaultHeight),
		OwnerID: user.ID,
		TopicID: in.TopicID,
	}
	if note.Color == "" {
		note.Color = ColorYellow
	}
	if note.Title == "" {
		return nil, fail(ErrInvalidInput, "title is required")
	}
	if !validColor(note.Color) {
		return nil, fail(ErrInvalidInput, "color must be one of %s", strings.Join(Colors, ", "))
	}
	if note.Width <= 0 || note.Height <= 0 {
		return nil, fail(ErrInvalidInput, "width and height must be positive")
	}

	var topic *repository.TopicView
	if in.TopicID != nil {
		found, err := s.store.GetTopic(ctx, *in.TopicID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, errors.Wrap(err, "find topic")
		}
		topic = found
	}
	if d := policy.CreateNote(user.ID, in.TopicID, topic); !d.Allowed() {
		return nil, fail(ErrForbidden, "cannot add notes to this topic")
	}

	if err := s.store.CreateNote(ctx, &note); err != nil {
		return nil, errors.Wrap(err, "create note")
	}
	return &note, nil
}

// UpdateNote applies the fields present in patch. A geometry-only patch is
// allowed for every user who can see the note; anything else needs the owner.
func (s *Board) UpdateNote(ctx context.Context, user *db.User, noteID uint64, patch NotePatch) (*db.Note, error) {
	fields, err := patchFields(patch)
	if err != nil {
		return nil, err
	}

	note, topic, err := s.note(ctx, noteID)
	if err != nil {
		return nil, err
	}

	action, scope := policy.ActionMove, repository.ScopeVisible
	if patch.TouchesContent() {
		action, scope = policy.ActionEdit, repository.ScopeOwner
	}
	if d := policy.Note(user.ID, note, topic, action); !d.Allowed() {
		return nil, denied(d, "note")
	}

	ok, err := s.store.UpdateNote(ctx, user.ID, noteID, scope, fields)
	if err != nil {
		return nil, errors.Wrap(err, "update note")
	}
	if !ok {
		return nil, fail(ErrNotFound, "note not found")
	}

	updated, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "note not found")
		}
		return nil, errors.Wrap(err, "reload note")
	}
	return updated, nil
}

func (s *Board) DeleteNote(ctx context.Context, user *db.User, noteID uint64) error {
	note, topic, err := s.note(ctx, noteID)
	if err != nil {
		return err
	}
	if d := policy.Note(user.ID, note, topic, policy.ActionDelete); !d.Allowed() {
		return denied(d, "note")
	}

	ok, err := s.store.DeleteNote(ctx, user.ID, noteID)
	if err != nil {
		return errors.Wrap(err, "delete note")
	}
	if !ok {
		return fail(ErrNotFound, "note not found")
	}
	return nil
}

func (s *Board) topic(ctx context.Context, topicID uint64) (*repository.TopicView, error) {
	topic, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "topic not found")
		}
		return nil, errors.Wrap(err, "find topic")
	}
	return topic, nil
}

// note loads a note with its topic; the topic is nil for detached notes.
func (s *Board) note(ctx context.Context, noteID uint64) (*db.Note, *repository.TopicView, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fail(ErrNotFound, "note not found")
		}
		return nil, nil, errors.Wrap(err, "find note")
	}
	if note.TopicID == nil {
		return note, nil, nil
	}

	topic, err := s.store.GetTopic(ctx, *note.TopicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return note, nil, nil
		}
		return nil, nil, errors.Wrap(err, "find topic")
	}
	return note, topic, nil
}

func patchFields(p NotePatch) (map[string]interface{}, error) {
	if p.Empty() {
		return nil, fail(ErrInvalidInput, "no updatable fields")
	}

	fields := make(map[string]interface{})
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, fail(ErrInvalidInput, "title is required")
		}
		fields["title"] = title
	}
	if p.Content != nil {
		fields["content"] = *p.Content
	}
	if p.Color != nil {
		if !validColor(*p.Color) {
			return nil, fail(ErrInvalidInput, "color must be one of %s", strings.Join(Colors, ", "))
		}
		fields["color"] = *p.Color
	}
	if p.X != nil {
		fields["x"] = *p.X
	}
	if p.Y != nil {
		fields["y"] = *p.Y
	}
	if p.Width != nil {
		if *p.Width <= 0 {
			return nil, fail(ErrInvalidInput, "width must be positive")
		}
		fields["width"] = *p.Width
	}
	if p.Height != nil {
		if *p.Height <= 0 {
			return nil, fail(ErrInvalidInput, "height must be positive")
		}
		fields["height"] = *p.Height
	}
	return fields, nil
}

func topicName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fail(ErrInvalidInput, "name is required")
	}
	if utf8.RuneCountInString(name) > MaxTopicNameLength {
		return "", fail(ErrInvalidInput, "name must be at most %d characters", MaxTopicNameLength)
	}
	return name, nil
}

func validColor(color string) bool {
	for _, c := range Colors {
		if c == color {
			return true
		}
	}
	return false
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
