package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BizLink/entity"
)

type fakeGateway struct {
	pushes []entity.Notification
	badges []int
}

func (g *fakeGateway) Push(_ string, n entity.Notification) {
	g.pushes = append(g.pushes, n)
}

func (g *fakeGateway) SetBadge(_ string, unread int) {
	g.badges = append(g.badges, unread)
}

func newTestPolicy(g *fakeGateway) *Policy {
	return NewPolicy("alice", g, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func conv(id string, unread int) entity.Conversation {
	return entity.Conversation{
		ID:               id,
		Participants:     []string{"alice", "bob"},
		ParticipantNames: map[string]string{"bob": "Bob"},
		UnreadCount:      map[string]int{"alice": unread},
		LastMessage:      &entity.LastMessage{Text: "hi", SenderID: "bob"},
	}
}

func TestConversationNotifiesOnceOnIncrease(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	p.ConversationsUpdated([]entity.Conversation{conv("c1", 2)}, "", 2)
	require.Len(t, g.pushes, 1)
	assert.Equal(t, "Bob", g.pushes[0].Title)

	// same snapshot re-delivered, nothing new
	p.ConversationsUpdated([]entity.Conversation{conv("c1", 2)}, "", 2)
	assert.Len(t, g.pushes, 1)

	// counter moves 2 -> 3, exactly one more notification
	p.ConversationsUpdated([]entity.Conversation{conv("c1", 3)}, "", 3)
	assert.Len(t, g.pushes, 2)
}

func TestConversationDecreaseStaysSilent(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	p.ConversationsUpdated([]entity.Conversation{conv("c1", 3)}, "", 3)
	require.Len(t, g.pushes, 1)

	p.ConversationsUpdated([]entity.Conversation{conv("c1", 1)}, "", 1)
	assert.Len(t, g.pushes, 1)

	// drop to zero resets the tracked count, the next unread notifies
	p.ConversationsUpdated([]entity.Conversation{conv("c1", 0)}, "", 0)
	p.ConversationsUpdated([]entity.Conversation{conv("c1", 1)}, "", 1)
	assert.Len(t, g.pushes, 2)
}

func TestActiveConversationIsSilent(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	p.ConversationsUpdated([]entity.Conversation{conv("c1", 2)}, "c1", 2)
	assert.Empty(t, g.pushes)

	// after leaving the conversation the already-counted unread does not
	// re-notify
	p.ConversationsUpdated([]entity.Conversation{conv("c1", 2)}, "", 2)
	assert.Empty(t, g.pushes)
}

func TestActiveMessagesNotifyOncePerMessage(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	base := time.Now()
	inbound := entity.Message{
		ID:         "m1",
		SenderID:   "bob",
		SenderName: "Bob",
		Text:       "hello",
		Status:     entity.StatusSent,
		Timestamp:  base.Add(time.Second),
	}

	p.ActiveMessagesUpdated([]entity.Message{inbound}, "c1", 1)
	require.Len(t, g.pushes, 1)

	// re-delivered window, same id
	p.ActiveMessagesUpdated([]entity.Message{inbound}, "c1", 1)
	assert.Len(t, g.pushes, 1)
}

func TestOwnAndReadMessagesStaySilent(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	base := time.Now()
	own := entity.Message{ID: "m1", SenderID: "alice", Status: entity.StatusSent, Timestamp: base.Add(time.Second)}
	read := entity.Message{ID: "m2", SenderID: "bob", Read: true, Status: entity.StatusRead, Timestamp: base.Add(2 * time.Second)}
	pending := entity.Message{ClientTempID: "tmp", SenderID: "bob", Status: entity.StatusSending, Timestamp: base.Add(3 * time.Second)}

	p.ActiveMessagesUpdated([]entity.Message{own, read, pending}, "c1", 0)
	assert.Empty(t, g.pushes)
}

func TestConversationReadPreSeedsMessageIds(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	p.ConversationRead("c1", []string{"m1", "m2"}, 0)
	require.Len(t, g.badges, 1)
	assert.Equal(t, 0, g.badges[0])

	// freshly read messages re-delivered as unread must not burst-notify
	base := time.Now()
	msgs := []entity.Message{
		{ID: "m1", SenderID: "bob", Status: entity.StatusSent, Timestamp: base.Add(time.Second)},
		{ID: "m2", SenderID: "bob", Status: entity.StatusSent, Timestamp: base.Add(2 * time.Second)},
	}
	p.ActiveMessagesUpdated(msgs, "c1", 2)
	assert.Empty(t, g.pushes)
}

func TestBadgeRefreshedOnlyWhenNotified(t *testing.T) {
	g := &fakeGateway{}
	p := newTestPolicy(g)

	p.ConversationsUpdated([]entity.Conversation{conv("c1", 0)}, "", 0)
	assert.Empty(t, g.badges)

	p.ConversationsUpdated([]entity.Conversation{conv("c1", 1)}, "", 1)
	require.Len(t, g.badges, 1)
	assert.Equal(t, 1, g.badges[0])
}
