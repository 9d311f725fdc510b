package core

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"BizLink/entity"
	repository "BizLink/internal/database"
	"BizLink/internal/http-server/handlers/conversation"
	"BizLink/internal/http-server/handlers/message"
	"BizLink/internal/lib/sl"
	"BizLink/internal/service/chat"
)

// CreateConversation starts a direct conversation and optionally sends
// the first message.
func (c *Core) CreateConversation(ctx context.Context, user *entity.UserAuth, other conversation.Party, initialText string) (*entity.Conversation, error) {
	params := repository.CreateConversationParams{
		Participants: []string{user.Username, other.Username},
		ParticipantNames: map[string]string{
			user.Username:  user.Name,
			other.Username: other.Name,
		},
		ParticipantPhotos: map[string]string{
			user.Username:  user.Photo,
			other.Username: other.Photo,
		},
	}

	var initial *entity.Message
	if initialText != "" {
		msg := entity.NewPendingMessage(uuid.NewString(), "", user.Username, user.Name, user.Photo, initialText, "", nil)
		initial = &msg
	}

	conv, err := c.svc.CreateConversation(ctx, params, initial)
	if err != nil {
		return nil, err
	}

	c.notifyParticipants(conv, user.Username)
	return conv, nil
}

// FindOrCreateBusinessConversation returns the one conversation between
// the caller and the other party in the business context.
func (c *Core) FindOrCreateBusinessConversation(ctx context.Context, user *entity.UserAuth, other conversation.Party, businessID, businessName string) (*entity.Conversation, error) {
	conv, err := c.svc.FindOrCreateBusinessConversation(ctx, repository.BusinessConversationParams{
		UserA:        user.Username,
		NameA:        user.Name,
		PhotoA:       user.Photo,
		UserB:        other.Username,
		NameB:        other.Name,
		PhotoB:       other.Photo,
		BusinessID:   businessID,
		BusinessName: businessName,
	})
	if err != nil {
		return nil, err
	}

	c.notifyParticipants(conv, user.Username)
	return conv, nil
}

// ListConversations refreshes and returns the caller's inbox.
func (c *Core) ListConversations(ctx context.Context, user *entity.UserAuth) ([]entity.Conversation, int, error) {
	s := c.sessions.Session(user)
	if err := s.Refresh(ctx); err != nil {
		return nil, 0, err
	}
	return s.Conversations(), s.UnreadTotal(), nil
}

// OpenConversation makes the conversation active for the caller's
// session and returns it with the recent message window.
func (c *Core) OpenConversation(ctx context.Context, user *entity.UserAuth, id string) (*entity.Conversation, []entity.Message, error) {
	s := c.sessions.Session(user)
	if err := s.SetActiveConversation(ctx, id); err != nil {
		return nil, nil, err
	}

	conv := s.ActiveConversation()
	if conv == nil {
		return nil, nil, entity.ErrConversationNotFound
	}

	// the live window arrives asynchronously, serve the snapshot directly
	messages, err := c.repo.ListMessages(ctx, id, c.window)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// DeleteConversation hides the conversation for the caller only.
func (c *Core) DeleteConversation(ctx context.Context, user *entity.UserAuth, id string) error {
	if err := c.requireParticipant(ctx, user.Username, id); err != nil {
		return err
	}
	s := c.sessions.Session(user)
	return s.DeleteConversation(ctx, id)
}

// MarkConversationRead zeroes the caller's unread counter.
func (c *Core) MarkConversationRead(ctx context.Context, user *entity.UserAuth, id string) error {
	if err := c.requireParticipant(ctx, user.Username, id); err != nil {
		return err
	}

	// an active session routes the mark through its local state so the
	// optimistic zeroing and notification dedup stay consistent
	if s, ok := c.sessions.Lookup(user.Username); ok && s.ActiveConversationID() == id {
		if err := s.MarkConversationAsRead(ctx); err != nil {
			return err
		}
	} else if err := c.svc.MarkMessagesAsRead(ctx, id, user.Username); err != nil {
		return err
	}

	c.emitReadReceipt(ctx, id, user.Username)
	return nil
}

// SendMessage delivers a message through the caller's session, so the
// optimistic placeholder lifecycle and retries apply.
func (c *Core) SendMessage(ctx context.Context, user *entity.UserAuth, conversationID string, p message.SendParams) (*entity.Message, error) {
	s, err := c.sessionOn(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}

	msg, err := s.SendMessage(ctx, p.Text, p.ImageURL, p.ReplyTo)
	if err != nil {
		return nil, err
	}

	c.emitMessage(ctx, conversationID, msg)
	return msg, nil
}

// ResendMessage retries a failed message by its client temp id.
func (c *Core) ResendMessage(ctx context.Context, user *entity.UserAuth, conversationID, tempID string) (*entity.Message, error) {
	s, err := c.sessionOn(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}

	msg, err := s.ResendFailedMessage(ctx, tempID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		// nothing to resend
		return nil, nil
	}

	c.emitMessage(ctx, conversationID, msg)
	return msg, nil
}

// ListMessages returns the recent message window of a conversation.
func (c *Core) ListMessages(ctx context.Context, user *entity.UserAuth, conversationID string, limit int) ([]entity.Message, error) {
	if err := c.requireParticipant(ctx, user.Username, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > c.window {
		limit = c.window
	}
	return c.repo.ListMessages(ctx, conversationID, limit)
}

// sessionOn returns the caller's session with the conversation active.
func (c *Core) sessionOn(ctx context.Context, user *entity.UserAuth, conversationID string) (*chat.Session, error) {
	s := c.sessions.Session(user)
	if s.ActiveConversationID() != conversationID {
		if err := s.SetActiveConversation(ctx, conversationID); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (c *Core) requireParticipant(ctx context.Context, username, conversationID string) error {
	conv, err := c.svc.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(username) {
		return entity.ErrPermissionDenied
	}
	return nil
}

// notifyParticipants pushes a conversation_update to everyone but the
// actor.
func (c *Core) notifyParticipants(conv *entity.Conversation, actor string) {
	if c.events == nil {
		return
	}
	for _, participant := range conv.Participants {
		if participant != actor {
			c.events.BroadcastConversationUpdate(participant, conv)
		}
	}
}

func (c *Core) emitMessage(ctx context.Context, conversationID string, msg *entity.Message) {
	if c.events == nil {
		return
	}
	conv, err := c.svc.GetConversation(ctx, conversationID)
	if err != nil {
		c.log.Warn("failed to load conversation for fan-out",
			slog.String("conversation_id", conversationID),
			sl.Err(err),
		)
		return
	}
	c.events.BroadcastMessage(conv, msg)
	c.notifyParticipants(conv, msg.SenderID)
}

func (c *Core) emitReadReceipt(ctx context.Context, conversationID, readBy string) {
	if c.events == nil {
		return
	}
	conv, err := c.svc.GetConversation(ctx, conversationID)
	if err != nil {
		return
	}
	if other := conv.OtherParticipant(readBy); other != "" {
		c.events.BroadcastReadReceipt(other, conversationID, readBy)
	}
}
