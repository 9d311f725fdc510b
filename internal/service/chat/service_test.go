package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BizLink/entity"
	"BizLink/internal/config"
	repository "BizLink/internal/database"
)

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	messages      map[string][]entity.Message
	listeners     map[string][]func([]entity.Message)

	sendCalls     int
	failSends     int
	failErr       error
	listErr       error
	listDelay     bool
	upsertCalls   int
	createCalls   int
	markReadCalls int
	unsubscribed  int
	nextID        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]entity.Message),
		listeners:     make(map[string][]func([]entity.Message)),
	}
}

func (f *fakeStore) addConversation(id string, participants []string, unread map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if unread == nil {
		unread = map[string]int{}
	}
	f.conversations[id] = &entity.Conversation{
		ID:           id,
		Participants: participants,
		PairKey:      repository.PairKey(participants[0], participants[1]),
		UnreadCount:  unread,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func (f *fakeStore) UpsertBusinessConversation(_ context.Context, p repository.BusinessConversationParams) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++

	key := repository.PairKey(p.UserA, p.UserB) + "#" + p.BusinessID
	for _, c := range f.conversations {
		if c.PairKey+"#"+c.BusinessID == key {
			conv := c.Clone()
			return &conv, nil
		}
	}

	f.nextID++
	conv := &entity.Conversation{
		ID:           fmt.Sprintf("conv-%d", f.nextID),
		Participants: []string{p.UserA, p.UserB},
		PairKey:      repository.PairKey(p.UserA, p.UserB),
		BusinessID:   p.BusinessID,
		BusinessName: p.BusinessName,
		UnreadCount:  map[string]int{p.UserA: 0, p.UserB: 0},
		CreatedAt:    time.Now().UTC(),
	}
	f.conversations[conv.ID] = conv
	out := conv.Clone()
	return &out, nil
}

func (f *fakeStore) CreateConversation(_ context.Context, p repository.CreateConversationParams) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	f.nextID++
	conv := &entity.Conversation{
		ID:           fmt.Sprintf("conv-%d", f.nextID),
		Participants: p.Participants,
		PairKey:      repository.PairKey(p.Participants[0], p.Participants[1]),
		UnreadCount:  map[string]int{p.Participants[0]: 0, p.Participants[1]: 0},
		CreatedAt:    time.Now().UTC(),
	}
	f.conversations[conv.ID] = conv
	out := conv.Clone()
	return &out, nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, entity.ErrConversationNotFound
	}
	conv := c.Clone()
	return &conv, nil
}

func (f *fakeStore) ListConversations(ctx context.Context, userID string) ([]entity.Conversation, error) {
	if f.listDelay {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Conversation
	for _, c := range f.conversations {
		for _, p := range c.Participants {
			if p == userID {
				out = append(out, c.Clone())
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SendMessage(_ context.Context, msg entity.Message) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++

	if f.failSends > 0 {
		f.failSends--
		if f.failErr != nil {
			return nil, f.failErr
		}
		return nil, errors.New("store write failed")
	}

	conv, ok := f.conversations[msg.ConversationID]
	if !ok {
		return nil, entity.ErrConversationNotFound
	}

	f.nextID++
	msg.ID = fmt.Sprintf("msg-%d", f.nextID)
	msg.Status = entity.StatusSent
	msg.Timestamp = time.Now().UTC()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)

	for _, p := range conv.Participants {
		if p != msg.SenderID {
			conv.UnreadCount[p]++
		}
	}
	conv.LastMessage = &entity.LastMessage{Text: msg.Text, SenderID: msg.SenderID, Timestamp: msg.Timestamp}

	out := msg
	return &out, nil
}

func (f *fakeStore) MarkMessagesAsRead(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls++

	conv, ok := f.conversations[conversationID]
	if !ok {
		return entity.ErrConversationNotFound
	}
	conv.UnreadCount[userID] = 0
	msgs := f.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != userID {
			msgs[i].Read = true
			msgs[i].Status = entity.StatusRead
		}
	}
	return nil
}

func (f *fakeStore) DeleteConversation(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return entity.ErrConversationNotFound
	}
	if conv.DeletedFor == nil {
		conv.DeletedFor = map[string]bool{}
	}
	conv.DeletedFor[userID] = true
	return nil
}

func (f *fakeStore) ListenToMessages(conversationID string, _ int, onUpdate func([]entity.Message), _ func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners[conversationID] = append(f.listeners[conversationID], onUpdate)
	return func() {
		f.mu.Lock()
		f.unsubscribed++
		f.mu.Unlock()
	}, nil
}

// deliver pushes the stored messages of a conversation to its listeners,
// standing in for the change stream.
func (f *fakeStore) deliver(conversationID string) {
	f.mu.Lock()
	msgs := append([]entity.Message(nil), f.messages[conversationID]...)
	listeners := make([]func([]entity.Message), 0, len(f.listeners[conversationID]))
	listeners = append(listeners, f.listeners[conversationID]...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(msgs)
	}
}

type fakeGate struct{ online bool }

func (g *fakeGate) Online() bool { return g.online }

func newTestService(store Store, gate Gate) *Service {
	conf := &config.Config{}
	conf.Chat.SendRetries = 3
	conf.Chat.BackoffStep = time.Millisecond

	svc := NewService(store, gate, conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.wait = func(context.Context, time.Duration) error { return nil }
	return svc
}

func TestSendMessageRetriesTransientFailures(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	store.failSends = 2

	svc := newTestService(store, &fakeGate{online: true})

	msg := entity.NewPendingMessage("tmp-1", "c1", "alice", "Alice", "", "hello", "", nil)
	stored, err := svc.SendMessage(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, 3, store.sendCalls)
	assert.Equal(t, entity.StatusSent, stored.Status)
	assert.Equal(t, "tmp-1", stored.ClientTempID)
}

func TestSendMessageGivesUpAfterRetries(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	store.failSends = 10

	svc := newTestService(store, &fakeGate{online: true})

	msg := entity.NewPendingMessage("tmp-1", "c1", "alice", "Alice", "", "hello", "", nil)
	_, err := svc.SendMessage(context.Background(), msg)

	require.Error(t, err)
	assert.Equal(t, 3, store.sendCalls)
}

func TestNonRetryableErrorShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	store.failSends = 10
	store.failErr = entity.ErrPermissionDenied

	svc := newTestService(store, &fakeGate{online: true})

	msg := entity.NewPendingMessage("tmp-1", "c1", "alice", "Alice", "", "hello", "", nil)
	_, err := svc.SendMessage(context.Background(), msg)

	require.ErrorIs(t, err, entity.ErrPermissionDenied)
	assert.Equal(t, 1, store.sendCalls)
}

func TestSameUserConversationRejectedWithoutStoreCall(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGate{online: true})

	_, err := svc.FindOrCreateBusinessConversation(context.Background(), repository.BusinessConversationParams{
		UserA: "alice", UserB: "alice", BusinessID: "b1", BusinessName: "Shop",
	})
	require.ErrorIs(t, err, entity.ErrSameUserConversation)
	assert.Zero(t, store.upsertCalls)

	_, err = svc.CreateConversation(context.Background(), repository.CreateConversationParams{
		Participants: []string{"alice", "alice"},
	}, nil)
	require.ErrorIs(t, err, entity.ErrSameUserConversation)
	assert.Zero(t, store.createCalls)
}

func TestBusinessConversationIsDeduplicated(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGate{online: true})

	params := repository.BusinessConversationParams{
		UserA: "alice", NameA: "Alice",
		UserB: "bob", NameB: "Bob",
		BusinessID: "b1", BusinessName: "Shop",
	}

	first, err := svc.FindOrCreateBusinessConversation(context.Background(), params)
	require.NoError(t, err)

	// reversed pair, same business: same conversation
	params.UserA, params.UserB = params.UserB, params.UserA
	second, err := svc.FindOrCreateBusinessConversation(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestOfflineGateFailsFast(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", []string{"alice", "bob"}, nil)
	svc := newTestService(store, &fakeGate{online: false})

	msg := entity.NewPendingMessage("tmp-1", "c1", "alice", "Alice", "", "hello", "", nil)
	_, err := svc.SendMessage(context.Background(), msg)
	require.ErrorIs(t, err, entity.ErrOffline)
	assert.Zero(t, store.sendCalls)

	_, err = svc.FindOrCreateBusinessConversation(context.Background(), repository.BusinessConversationParams{
		UserA: "alice", UserB: "bob", BusinessID: "b1", BusinessName: "Shop",
	})
	require.ErrorIs(t, err, entity.ErrOffline)

	require.ErrorIs(t, svc.MarkMessagesAsRead(context.Background(), "c1", "alice"), entity.ErrOffline)
	require.ErrorIs(t, svc.DeleteConversation(context.Background(), "c1", "alice"), entity.ErrOffline)
	assert.Zero(t, store.markReadCalls)
}

func TestSendMessageValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGate{online: true})

	_, err := svc.SendMessage(context.Background(), entity.Message{ConversationID: "c1", SenderID: "alice"})
	assert.Equal(t, entity.CodeInvalidParams, entity.CodeOf(err))

	_, err = svc.SendMessage(context.Background(), entity.Message{Text: "hi", SenderID: "alice"})
	assert.Equal(t, entity.CodeInvalidParams, entity.CodeOf(err))
}

func TestCreateConversationSendsInitialMessage(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGate{online: true})

	initial := entity.NewPendingMessage("tmp-1", "", "alice", "Alice", "", "hi there", "", nil)
	conv, err := svc.CreateConversation(context.Background(), repository.CreateConversationParams{
		Participants: []string{"alice", "bob"},
	}, &initial)

	require.NoError(t, err)
	require.Len(t, store.messages[conv.ID], 1)
	assert.Equal(t, "hi there", store.messages[conv.ID][0].Text)
	assert.Equal(t, conv.ID, store.messages[conv.ID][0].ConversationID)
}

func TestNilGateMeansOnline(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	assert.True(t, svc.Online())
}
