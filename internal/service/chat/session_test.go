package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BizLink/entity"
	"BizLink/internal/service/notify"
)

type fakeCache struct {
	inbox  []entity.Conversation
	stored int
}

func (c *fakeCache) StoreInbox(_ context.Context, _ string, conversations []entity.Conversation) error {
	c.inbox = append([]entity.Conversation(nil), conversations...)
	c.stored++
	return nil
}

func (c *fakeCache) LoadInbox(context.Context, string) ([]entity.Conversation, time.Time, error) {
	if c.inbox == nil {
		return nil, time.Time{}, nil
	}
	return c.inbox, time.Now(), nil
}

type fakePushGateway struct {
	mu     sync.Mutex
	pushes int
	badge  int
}

func (g *fakePushGateway) Push(string, entity.Notification) {
	g.mu.Lock()
	g.pushes++
	g.mu.Unlock()
}

func (g *fakePushGateway) SetBadge(_ string, unread int) {
	g.mu.Lock()
	g.badge = unread
	g.mu.Unlock()
}

func (g *fakePushGateway) lastBadge() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.badge
}

func (g *fakePushGateway) pushCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pushes
}

func newTestSession(store *fakeStore, gate Gate, cache InboxCache) *Session {
	svc := newTestService(store, gate)
	user := &entity.UserAuth{Username: "alice", Name: "Alice"}
	return NewSession(user, svc, cache, nil, 50*time.Millisecond, 50, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOptimisticSendConverges(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))

	msg, err := s.SendMessage(context.Background(), "hello", "", nil)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, msg.Confirmed())

	window := s.ActiveMessages()
	require.Len(t, window, 1)
	assert.True(t, window[0].Confirmed())
	assert.Equal(t, msg.ClientTempID, window[0].ClientTempID)

	// authoritative window arrives, still exactly one message
	store.deliver("c1")
	window = s.ActiveMessages()
	require.Len(t, window, 1)
	assert.Equal(t, msg.ID, window[0].ID)
}

func TestFailedSendBecomesErrorPlaceholder(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	store.failSends = 10
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))

	_, err := s.SendMessage(context.Background(), "hello", "", nil)
	require.Error(t, err)

	window := s.ActiveMessages()
	require.Len(t, window, 1)
	assert.Equal(t, entity.StatusError, window[0].Status)
	assert.True(t, window[0].Pending())
}

func TestResendFailedMessageReusesTempID(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	store.failSends = 3
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))
	_, err := s.SendMessage(context.Background(), "hello", "", nil)
	require.Error(t, err)

	tempID := s.ActiveMessages()[0].ClientTempID
	require.NotEmpty(t, tempID)

	msg, err := s.ResendFailedMessage(context.Background(), tempID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, tempID, msg.ClientTempID)

	window := s.ActiveMessages()
	require.Len(t, window, 1)
	assert.True(t, window[0].Confirmed())
	assert.Len(t, store.messages["c1"], 1)
}

func TestResendIsNoopUnlessFailed(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))
	sent, err := s.SendMessage(context.Background(), "hello", "", nil)
	require.NoError(t, err)

	calls := store.sendCalls
	msg, err := s.ResendFailedMessage(context.Background(), sent.ClientTempID)
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, calls, store.sendCalls)

	msg, err = s.ResendFailedMessage(context.Background(), "unknown-temp-id")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestOfflineSendLeavesNoPlaceholder(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	gate := &fakeGate{online: true}
	s := newTestSession(store, gate, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))

	gate.online = false
	_, err := s.SendMessage(context.Background(), "hello", "", nil)
	require.ErrorIs(t, err, entity.ErrOffline)
	assert.Empty(t, s.ActiveMessages())
	assert.True(t, s.IsOffline())
}

func TestMarkConversationAsReadIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, map[string]int{"alice": 2, "bob": 0})
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))
	assert.Equal(t, 2, s.UnreadTotal())

	require.NoError(t, s.MarkConversationAsRead(context.Background()))
	assert.Equal(t, 1, store.markReadCalls)
	assert.Equal(t, 0, s.UnreadTotal())

	// already read, the store is not hit again
	require.NoError(t, s.MarkConversationAsRead(context.Background()))
	assert.Equal(t, 1, store.markReadCalls)
}

func TestRefreshTimeoutIsDistinct(t *testing.T) {
	store := newFakeStore()
	store.listDelay = true
	s := newTestSession(store, &fakeGate{online: true}, nil)

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrTimeout)
}

func TestRefreshFallsBackToCachedInbox(t *testing.T) {
	store := newFakeStore()
	cache := &fakeCache{
		inbox: []entity.Conversation{{
			ID:           "c1",
			Participants: []string{"alice", "bob"},
			UnreadCount:  map[string]int{"alice": 1},
		}},
	}
	store.listErr = errors.New("store down")
	s := newTestSession(store, &fakeGate{online: true}, cache)

	require.NoError(t, s.Refresh(context.Background()))

	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "c1", conversations[0].ID)
	assert.Equal(t, 1, s.UnreadTotal())
	assert.Error(t, s.LastError())
}

func TestRefreshStoresInboxInCache(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	cache := &fakeCache{}
	s := newTestSession(store, &fakeGate{online: true}, cache)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, cache.stored)
	assert.Nil(t, s.LastError())
}

func TestStaleWindowFromPreviousConversationIsDropped(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	store.addConversation("c2", []string{"alice", "carol"}, nil)
	store.messages["c1"] = []entity.Message{{ID: "m1", ConversationID: "c1", SenderID: "bob", Status: entity.StatusSent, Timestamp: time.Now()}}
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))
	require.NoError(t, s.SetActiveConversation(context.Background(), "c2"))
	assert.GreaterOrEqual(t, store.unsubscribed, 1)

	// a late delivery for the previous conversation must not land
	store.deliver("c1")
	assert.Empty(t, s.ActiveMessages())
	assert.Equal(t, "c2", s.ActiveConversationID())
}

func TestDeleteConversationLeavesActiveAndInbox(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))

	require.NoError(t, s.DeleteConversation(context.Background(), "c1"))
	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ActiveConversationID())

	// soft delete: the store still has the conversation for bob
	conv, err := store.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, conv.DeletedBy("alice"))
	assert.False(t, conv.DeletedBy("bob"))
}

func TestRefreshHidesDeletedConversations(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	require.NoError(t, store.DeleteConversation(context.Background(), "c1", "alice"))
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Empty(t, s.Conversations())
}

func TestSetActiveRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"bob", "carol"}, nil)
	s := newTestSession(store, &fakeGate{online: true}, nil)

	err := s.SetActiveConversation(context.Background(), "c1")
	require.ErrorIs(t, err, entity.ErrPermissionDenied)
}

func TestMergeWindowKeepsUnconfirmedPlaceholders(t *testing.T) {
	base := time.Now()

	confirmed := entity.Message{ID: "m1", ClientTempID: "t1", Status: entity.StatusSent, Timestamp: base}
	pendingConfirmed := entity.Message{ClientTempID: "t1", Status: entity.StatusSending, Timestamp: base}
	pendingOther := entity.Message{ClientTempID: "t2", Status: entity.StatusSending, Timestamp: base.Add(time.Second)}

	merged := MergeWindow(
		[]entity.Message{confirmed},
		[]entity.Message{pendingConfirmed, pendingOther},
	)

	require.Len(t, merged, 2)
	assert.Equal(t, "m1", merged[0].ID)
	assert.Equal(t, "t2", merged[1].ClientTempID)
}

func TestSessionSnapshotsDoNotAliasInternalState(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, map[string]int{"alice": 2})
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))

	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	conversations[0].UnreadCount["alice"] = 99
	assert.Equal(t, 2, s.Conversations()[0].UnreadFor("alice"))
	assert.Equal(t, 2, s.UnreadTotal())

	active := s.ActiveConversation()
	require.NotNil(t, active)
	active.UnreadCount["alice"] = 99
	assert.Equal(t, 2, s.ActiveConversation().UnreadFor("alice"))
}

func TestConcurrentRefreshAndMarkRead(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, map[string]int{"alice": 3})

	svc := newTestService(store, &fakeGate{online: true})
	user := &entity.UserAuth{Username: "alice", Name: "Alice"}
	gateway := &fakePushGateway{}
	policy := notify.NewPolicy("alice", gateway, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := NewSession(user, svc, nil, policy, 50*time.Millisecond, 50, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Refresh(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.MarkConversationAsRead(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			store.deliver("c1")
		}
	}()
	wg.Wait()

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 0, s.UnreadTotal())
	assert.Equal(t, 0, gateway.lastBadge())
	// the only notification is the initial refresh, before c1 went active
	assert.Equal(t, 1, gateway.pushCount())
}

func TestCloseTearsDownSubscription(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	s := newTestSession(store, &fakeGate{online: true}, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))
	s.Close()
	assert.GreaterOrEqual(t, store.unsubscribed, 1)

	err := s.Refresh(context.Background())
	assert.Error(t, err)
}
