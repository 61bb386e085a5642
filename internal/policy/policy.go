// Package policy decides who may read, change or delete topics and notes.
// Every function is pure: callers load the records, policy only looks at them.
package policy

import (
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
)

type Decision int

const (
	Allow Decision = iota
	// Forbidden means the record is visible to the user but not writable.
	Forbidden
	// NotFound hides records the user has no relationship with.
	NotFound
)

type Action string

const (
	ActionRead     Action = "read"
	ActionEdit     Action = "edit"
	ActionMove     Action = "move"
	ActionDelete   Action = "delete"
	ActionRename   Action = "rename"
	ActionJoin     Action = "join"
	ActionCreateIn Action = "create"
)

func (d Decision) Allowed() bool {
	return d == Allow
}

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Forbidden:
		return "forbidden"
	default:
		return "not_found"
	}
}

func CanReadTopic(userID uint64, topic *repository.TopicView) bool {
	return topic != nil && topic.HasMember(userID)
}

// Topic decides a topic action. Join is open to anyone holding the code, so
// the caller only reaches here with a topic found by share code.
func Topic(userID uint64, topic *repository.TopicView, action Action) Decision {
	if topic == nil {
		return NotFound
	}
	switch action {
	case ActionJoin:
		return Allow
	case ActionRead:
		if CanReadTopic(userID, topic) {
			return Allow
		}
		return NotFound
	case ActionRename, ActionDelete:
		if topic.OwnerID == userID {
			return Allow
		}
		if CanReadTopic(userID, topic) {
			return Forbidden
		}
		return NotFound
	case ActionCreateIn:
		if CanReadTopic(userID, topic) {
			return Allow
		}
		return Forbidden
	default:
		return Forbidden
	}
}

// CreateNote allows unassigned notes, and notes in topics the user can read.
// A topic that is missing or outside the user's membership is Forbidden.
func CreateNote(userID uint64, topicID *uint64, topic *repository.TopicView) Decision {
	if topicID == nil {
		return Allow
	}
	if topic == nil || topic.ID != *topicID {
		return Forbidden
	}
	return Topic(userID, topic, ActionCreateIn)
}

// CanReadNote: owner, or the note sits in a topic the user can read. topic
// must be the note's topic (nil when detached or missing).
func CanReadNote(userID uint64, note *db.Note, topic *repository.TopicView) bool {
	if note == nil {
		return false
	}
	if note.OwnerID == userID {
		return true
	}
	return note.TopicID != nil && topic != nil && topic.ID == *note.TopicID && CanReadTopic(userID, topic)
}

// Note decides a note action. Moving and resizing is open to every reader of
// the note; editing content and deleting stay with the owner.
func Note(userID uint64, note *db.Note, topic *repository.TopicView, action Action) Decision {
	if !CanReadNote(userID, note, topic) {
		return NotFound
	}
	switch action {
	case ActionRead, ActionMove:
		return Allow
	case ActionEdit, ActionDelete:
		if note.OwnerID == userID {
			return Allow
		}
		return Forbidden
	default:
		return Forbidden
	}
}
