package policy

import (
	"testing"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
)

const (
	owner    uint64 = 1
	member   uint64 = 2
	outsider uint64 = 3
)

func sharedTopic() *repository.TopicView {
	return &repository.TopicView{
		Topic:   db.Topic{GormForkedModel: db.GormForkedModel{ID: 10}, OwnerID: owner, ShareCode: "CODE1"},
		Members: []uint64{owner, member},
	}
}

func noteIn(topicID *uint64) *db.Note {
	return &db.Note{GormForkedModel: db.GormForkedModel{ID: 100}, OwnerID: owner, TopicID: topicID}
}

func TestTopic(t *testing.T) {
	topic := sharedTopic()
	cases := []struct {
		name   string
		user   uint64
		action Action
		want   Decision
	}{
		{name: "owner read", user: owner, action: ActionRead, want: Allow},
		{name: "member read", user: member, action: ActionRead, want: Allow},
		{name: "outsider read", user: outsider, action: ActionRead, want: NotFound},
		{name: "owner rename", user: owner, action: ActionRename, want: Allow},
		{name: "member rename", user: member, action: ActionRename, want: Forbidden},
		{name: "outsider rename", user: outsider, action: ActionRename, want: NotFound},
		{name: "owner delete", user: owner, action: ActionDelete, want: Allow},
		{name: "member delete", user: member, action: ActionDelete, want: Forbidden},
		{name: "outsider join", user: outsider, action: ActionJoin, want: Allow},
		{name: "member join again", user: member, action: ActionJoin, want: Allow},
		{name: "member create in", user: member, action: ActionCreateIn, want: Allow},
		{name: "outsider create in", user: outsider, action: ActionCreateIn, want: Forbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Topic(tc.user, topic, tc.action); got != tc.want {
				t.Fatalf("Topic(%d, %q) = %s, want %s", tc.user, tc.action, got, tc.want)
			}
		})
	}

	if got := Topic(owner, nil, ActionRead); got != NotFound {
		t.Fatalf("Topic(nil) = %s, want not_found", got)
	}
}

func TestOwnerIsImplicitMember(t *testing.T) {
	topic := &repository.TopicView{Topic: db.Topic{OwnerID: owner}}
	if !CanReadTopic(owner, topic) {
		t.Fatal("owner must read a topic even with an empty member set")
	}
}

func TestCreateNote(t *testing.T) {
	topic := sharedTopic()
	other := uint64(99)
	cases := []struct {
		name    string
		user    uint64
		topicID *uint64
		topic   *repository.TopicView
		want    Decision
	}{
		{name: "unassigned", user: outsider, want: Allow},
		{name: "member in topic", user: member, topicID: &topic.ID, topic: topic, want: Allow},
		{name: "outsider in topic", user: outsider, topicID: &topic.ID, topic: topic, want: Forbidden},
		{name: "missing topic", user: owner, topicID: &other, want: Forbidden},
		{name: "mismatched topic", user: owner, topicID: &other, topic: topic, want: Forbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CreateNote(tc.user, tc.topicID, tc.topic); got != tc.want {
				t.Fatalf("CreateNote() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNote(t *testing.T) {
	topic := sharedTopic()
	shared := noteIn(&topic.ID)
	private := noteIn(nil)

	cases := []struct {
		name   string
		user   uint64
		note   *db.Note
		topic  *repository.TopicView
		action Action
		want   Decision
	}{
		{name: "owner edit shared", user: owner, note: shared, topic: topic, action: ActionEdit, want: Allow},
		{name: "member read shared", user: member, note: shared, topic: topic, action: ActionRead, want: Allow},
		{name: "member move shared", user: member, note: shared, topic: topic, action: ActionMove, want: Allow},
		{name: "member edit shared", user: member, note: shared, topic: topic, action: ActionEdit, want: Forbidden},
		{name: "member delete shared", user: member, note: shared, topic: topic, action: ActionDelete, want: Forbidden},
		{name: "outsider move shared", user: outsider, note: shared, topic: topic, action: ActionMove, want: NotFound},
		{name: "member move private", user: member, note: private, action: ActionMove, want: NotFound},
		{name: "owner delete private", user: owner, note: private, action: ActionDelete, want: Allow},
		{name: "missing note", user: owner, action: ActionRead, want: NotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Note(tc.user, tc.note, tc.topic, tc.action); got != tc.want {
				t.Fatalf("Note(%d, %q) = %s, want %s", tc.user, tc.action, got, tc.want)
			}
		})
	}
}
