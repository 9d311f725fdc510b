// Package chat owns the conversation domain: the repository-facing
// service with its retry policy, the per-user session controller, and
// the duplicate-conversation sweep.
package chat

import (
	"context"
	"log/slog"
	"time"

	"BizLink/entity"
	"BizLink/internal/config"
	repository "BizLink/internal/database"
	"BizLink/internal/lib/sl"
	"BizLink/internal/metrics"
)

// Store is the conversation store surface the chat service depends on.
// *repository.MongoDB satisfies it; tests substitute an in-memory fake.
type Store interface {
	UpsertBusinessConversation(ctx context.Context, p repository.BusinessConversationParams) (*entity.Conversation, error)
	CreateConversation(ctx context.Context, p repository.CreateConversationParams) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]entity.Conversation, error)
	SendMessage(ctx context.Context, msg entity.Message) (*entity.Message, error)
	MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error
	DeleteConversation(ctx context.Context, id, userID string) error
	ListenToMessages(conversationID string, limit int, onUpdate func([]entity.Message), onError func(error)) (func(), error)
}

// Gate reports whether the store is currently reachable. Mutations fail
// fast while offline instead of queuing.
type Gate interface {
	Online() bool
}

// Service fronts the store with validation, the offline gate and the
// retry policy: create/send operations retry up to the configured number
// of attempts with linear backoff, everything else runs once.
type Service struct {
	store   Store
	gate    Gate
	log     *slog.Logger
	retries int
	backoff time.Duration

	// wait is swapped out by tests to avoid real sleeps
	wait func(ctx context.Context, d time.Duration) error
}

func NewService(store Store, gate Gate, conf *config.Config, log *slog.Logger) *Service {
	return &Service{
		store:   store,
		gate:    gate,
		log:     log.With(sl.Module("chat.service")),
		retries: conf.Chat.SendRetries,
		backoff: conf.Chat.BackoffStep,
		wait:    waitCtx,
	}
}

func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Online reports the connectivity gate state.
func (s *Service) Online() bool {
	return s.gate == nil || s.gate.Online()
}

// withRetry runs fn up to s.retries times with linear backoff
// (attempt × backoff step). Errors that cannot succeed on a second
// attempt short-circuit immediately.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !entity.Retryable(err) || attempt >= s.retries {
			return err
		}
		metrics.SendRetries.Inc()
		s.log.Warn("retrying after transient failure",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			sl.Err(err),
		)
		if werr := s.wait(ctx, time.Duration(attempt)*s.backoff); werr != nil {
			return err
		}
	}
}

// FindOrCreateBusinessConversation returns the existing conversation
// between the pair in the given business context, creating it when none
// exists. Same-user and incomplete requests are rejected before any
// store call.
func (s *Service) FindOrCreateBusinessConversation(ctx context.Context, p repository.BusinessConversationParams) (*entity.Conversation, error) {
	if p.UserA == "" || p.UserB == "" {
		return nil, entity.InvalidParams("both participant ids are required")
	}
	if p.UserA == p.UserB {
		return nil, entity.ErrSameUserConversation
	}
	if p.BusinessID == "" || p.BusinessName == "" {
		return nil, entity.InvalidParams("business conversations require business id and name")
	}
	if !s.Online() {
		return nil, entity.ErrOffline
	}

	var conv *entity.Conversation
	err := s.withRetry(ctx, "upsert_business_conversation", func() error {
		var err error
		conv, err = s.store.UpsertBusinessConversation(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateConversation writes a new conversation; when initial is set it is
// immediately sent as the first message.
func (s *Service) CreateConversation(ctx context.Context, p repository.CreateConversationParams, initial *entity.Message) (*entity.Conversation, error) {
	if len(p.Participants) != 2 {
		return nil, entity.InvalidParams("a conversation has exactly two participants")
	}
	if p.Participants[0] == "" || p.Participants[1] == "" {
		return nil, entity.InvalidParams("both participant ids are required")
	}
	if p.Participants[0] == p.Participants[1] {
		return nil, entity.ErrSameUserConversation
	}
	if !s.Online() {
		return nil, entity.ErrOffline
	}

	var conv *entity.Conversation
	err := s.withRetry(ctx, "create_conversation", func() error {
		var err error
		conv, err = s.store.CreateConversation(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	if initial != nil {
		initial.ConversationID = conv.ID
		if _, err := s.SendMessage(ctx, *initial); err != nil {
			// conversation exists, first message lost; surface the error
			return conv, err
		}
	}

	return conv, nil
}

// SendMessage appends a message with the configured retry policy.
func (s *Service) SendMessage(ctx context.Context, msg entity.Message) (*entity.Message, error) {
	if msg.ConversationID == "" || msg.SenderID == "" {
		return nil, entity.InvalidParams("conversation and sender are required")
	}
	if msg.Text == "" && msg.ImageURL == "" {
		return nil, entity.InvalidParams("message needs text or an image")
	}
	if !s.Online() {
		return nil, entity.ErrOffline
	}

	var stored *entity.Message
	err := s.withRetry(ctx, "send_message", func() error {
		var err error
		stored, err = s.store.SendMessage(ctx, msg)
		return err
	})
	if err != nil {
		metrics.SendFailures.Inc()
		return nil, err
	}

	metrics.MessagesSent.Inc()
	return stored, nil
}

// MarkMessagesAsRead zeroes the unread counter and flips inbound messages
// to READ. Not retried: the next read repeats it harmlessly.
func (s *Service) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	if !s.Online() {
		return entity.ErrOffline
	}
	return s.store.MarkMessagesAsRead(ctx, conversationID, userID)
}

// DeleteConversation soft-deletes for one participant.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if !s.Online() {
		return entity.ErrOffline
	}
	return s.store.DeleteConversation(ctx, conversationID, userID)
}

// GetConversation loads a single conversation.
func (s *Service) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// ListConversations loads a user's inbox.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]entity.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// ListenToMessages opens the live message window subscription.
func (s *Service) ListenToMessages(conversationID string, limit int, onUpdate func([]entity.Message), onError func(error)) (func(), error) {
	return s.store.ListenToMessages(conversationID, limit, onUpdate, onError)
}
