// Package notify decides which unread events become locally displayed
// notifications, deduplicating per message and per conversation so
// re-delivered state never notifies twice.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"BizLink/entity"
	"BizLink/internal/lib/sl"
	"BizLink/internal/metrics"
)

// Gateway is the external notification capability: display a notification
// on the user's devices and keep the badge count current.
type Gateway interface {
	Push(username string, n entity.Notification)
	SetBadge(username string, unread int)
}

// Policy is the per-user fan-out state. Its dedup maps live exactly as
// long as the owning session.
type Policy struct {
	userID  string
	gateway Gateway
	log     *slog.Logger

	mu                    sync.Mutex
	notifiedConversations map[string]int
	notifiedMessageIDs    map[string]struct{}
	lastMessageAt         time.Time
}

func NewPolicy(userID string, gateway Gateway, log *slog.Logger) *Policy {
	return &Policy{
		userID:                userID,
		gateway:               gateway,
		log:                   log.With(sl.Module("notify"), slog.String("user", userID)),
		notifiedConversations: make(map[string]int),
		notifiedMessageIDs:    make(map[string]struct{}),
	}
}

// ConversationsUpdated inspects an inbox delta. A conversation notifies
// when its unread counter moved past the last notified count and it is
// not the one currently on screen; equal or decreased counters are
// already-seen state and stay silent.
func (p *Policy) ConversationsUpdated(conversations []entity.Conversation, activeConversationID string, unreadTotal int) {
	if p.gateway == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	emitted := false
	for i := range conversations {
		conv := &conversations[i]
		unread := conv.UnreadFor(p.userID)

		if unread <= p.notifiedConversations[conv.ID] {
			if unread == 0 {
				delete(p.notifiedConversations, conv.ID)
			}
			continue
		}
		if conv.ID == activeConversationID {
			p.notifiedConversations[conv.ID] = unread
			continue
		}

		title := conv.BusinessName
		body := ""
		if lm := conv.LastMessage; lm != nil {
			if name := conv.NameOf(lm.SenderID); name != "" {
				title = name
			}
			body = lm.Text
		}

		p.gateway.Push(p.userID, entity.ChatNotification(title, body, conv.ID, ""))
		metrics.NotificationsEmitted.Inc()
		p.notifiedConversations[conv.ID] = unread
		emitted = true
	}

	if emitted {
		p.gateway.SetBadge(p.userID, unreadTotal)
	}
}

// ActiveMessagesUpdated inspects the live message window of the active
// conversation. An inbound message notifies once when it is newer than
// the last locally known message, still unread, and its id has not been
// seen before.
func (p *Policy) ActiveMessagesUpdated(messages []entity.Message, conversationID string, unreadTotal int) {
	if p.gateway == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	emitted := false
	newest := p.lastMessageAt
	for i := range messages {
		msg := &messages[i]
		if msg.Timestamp.After(newest) {
			newest = msg.Timestamp
		}
		if msg.SenderID == p.userID || msg.Read || !msg.Confirmed() {
			continue
		}
		if !msg.Timestamp.After(p.lastMessageAt) {
			continue
		}
		if _, seen := p.notifiedMessageIDs[msg.ID]; seen {
			continue
		}

		p.gateway.Push(p.userID, entity.ChatNotification(msg.SenderName, msg.Text, conversationID, msg.ID))
		metrics.NotificationsEmitted.Inc()
		p.notifiedMessageIDs[msg.ID] = struct{}{}
		emitted = true
	}
	p.lastMessageAt = newest

	if emitted {
		p.gateway.SetBadge(p.userID, unreadTotal)
	}
}

// ConversationRead clears the conversation's notified count and pre-seeds
// every currently loaded message id, so a re-delivered window of freshly
// read messages cannot burst-notify.
func (p *Policy) ConversationRead(conversationID string, loadedMessageIDs []string, unreadTotal int) {
	p.mu.Lock()
	delete(p.notifiedConversations, conversationID)
	for _, id := range loadedMessageIDs {
		if id != "" {
			p.notifiedMessageIDs[id] = struct{}{}
		}
	}
	p.mu.Unlock()

	if p.gateway != nil {
		p.gateway.SetBadge(p.userID, unreadTotal)
	}
}
