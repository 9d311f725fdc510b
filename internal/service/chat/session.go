package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"BizLink/entity"
	"BizLink/internal/lib/sl"
	"BizLink/internal/metrics"
	"BizLink/internal/service/notify"
)

// InboxCache is the stale-read fallback consulted when the store cannot
// serve the conversation list.
type InboxCache interface {
	StoreInbox(ctx context.Context, userID string, conversations []entity.Conversation) error
	LoadInbox(ctx context.Context, userID string) ([]entity.Conversation, time.Time, error)
}

// Session is the in-memory state machine owning what one user currently
// looks at: their inbox, the active conversation with its live message
// window, unread accounting and optimistic sends.
//
// Every asynchronous continuation captures the generation counter at its
// start and re-checks it before touching state, so a slow load for
// conversation A can never overwrite the screen after the user has moved
// on to conversation B. That check is the session's only concurrency
// mechanism besides the mutex; no lock is ever held across a store call.
type Session struct {
	userID string
	name   string
	photo  string

	svc    *Service
	cache  InboxCache
	policy *notify.Policy
	log    *slog.Logger

	refreshTimeout time.Duration
	window         int

	mu                   sync.Mutex
	conversations        []entity.Conversation
	activeConversationID string
	activeConversation   *entity.Conversation
	activeMessages       []entity.Message
	unreadTotal          int
	loading              bool
	lastErr              error
	generation           uint64
	unsubscribe          func()
	closed               bool
}

func NewSession(user *entity.UserAuth, svc *Service, cache InboxCache, policy *notify.Policy, refreshTimeout time.Duration, window int, log *slog.Logger) *Session {
	return &Session{
		userID:         user.Username,
		name:           user.Name,
		photo:          user.Photo,
		svc:            svc,
		cache:          cache,
		policy:         policy,
		refreshTimeout: refreshTimeout,
		window:         window,
		log:            log.With(sl.Module("chat.session"), slog.String("user", user.Username)),
	}
}

// Refresh reloads the inbox. The load races a timeout so a stalled store
// fails with a distinct chat/timeout error rather than hanging; other
// store failures fall back to the cached inbox when a fresh-enough
// snapshot exists.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return entity.InvalidParams("session closed")
	}
	s.loading = true
	s.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	conversations, err := s.svc.ListConversations(loadCtx, s.userID)
	if err != nil {
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			err = entity.ErrTimeout
		} else if cached := s.loadCachedInbox(ctx); cached != nil {
			s.log.Warn("inbox served from stale cache", sl.Err(err))
			s.applyConversations(cached)
			s.setError(err)
			return nil
		}
		s.setError(err)
		return err
	}

	if s.cache != nil {
		if cerr := s.cache.StoreInbox(ctx, s.userID, conversations); cerr != nil {
			s.log.Debug("inbox cache write failed", sl.Err(cerr))
		}
	}

	s.applyConversations(conversations)
	return nil
}

func (s *Session) loadCachedInbox(ctx context.Context) []entity.Conversation {
	if s.cache == nil {
		return nil
	}
	cached, _, err := s.cache.LoadInbox(ctx, s.userID)
	if err != nil || cached == nil {
		return nil
	}
	metrics.CacheFallbacks.Inc()
	return cached
}

func (s *Session) applyConversations(conversations []entity.Conversation) {
	s.mu.Lock()
	visible := conversations[:0:0]
	for _, c := range conversations {
		if !c.DeletedBy(s.userID) {
			visible = append(visible, c)
		}
	}
	s.conversations = visible
	s.recomputeUnreadLocked()
	if s.activeConversationID != "" {
		for i := range visible {
			if visible[i].ID == s.activeConversationID {
				conv := visible[i]
				s.activeConversation = &conv
				break
			}
		}
	}
	s.loading = false
	s.lastErr = nil
	activeID := s.activeConversationID
	unread := s.unreadTotal
	// the policy runs outside the lock, hand it a snapshot that shares
	// nothing with session state
	snapshot := cloneConversations(visible)
	s.mu.Unlock()

	if s.policy != nil {
		s.policy.ConversationsUpdated(snapshot, activeID, unread)
	}
}

// recomputeUnreadLocked keeps the invariant
// unreadTotal == Σ unread_count[user] over non-deleted conversations.
func (s *Session) recomputeUnreadLocked() {
	total := 0
	for i := range s.conversations {
		total += s.conversations[i].UnreadFor(s.userID)
	}
	s.unreadTotal = total
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	s.loading = false
	s.lastErr = err
	s.mu.Unlock()
}

// SetActiveConversation switches the screen to another conversation:
// tears down the previous message subscription, bumps the generation so
// stale continuations drop themselves, then loads and subscribes. An
// empty id just leaves the previous conversation.
func (s *Session) SetActiveConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return entity.InvalidParams("session closed")
	}
	s.generation++
	gen := s.generation
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.activeConversationID = id
	s.activeConversation = nil
	s.activeMessages = nil
	s.mu.Unlock()

	if id == "" {
		return nil
	}

	conv, err := s.svc.GetConversation(ctx, id)
	if err != nil {
		s.setError(err)
		return err
	}
	if !conv.HasParticipant(s.userID) {
		return entity.ErrPermissionDenied
	}

	s.mu.Lock()
	if gen != s.generation {
		// user already navigated elsewhere, drop this load
		s.mu.Unlock()
		return nil
	}
	s.activeConversation = conv
	s.mu.Unlock()

	unsubscribe, err := s.svc.ListenToMessages(id, s.window,
		func(messages []entity.Message) { s.onMessages(gen, id, messages) },
		func(err error) { s.onStreamError(gen, err) },
	)
	if err != nil {
		s.setError(err)
		return err
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return nil
}

// onMessages applies an authoritative message window, keeping local
// placeholders the store has not confirmed yet.
func (s *Session) onMessages(gen uint64, conversationID string, incoming []entity.Message) {
	s.mu.Lock()
	if gen != s.generation || conversationID != s.activeConversationID {
		s.mu.Unlock()
		return
	}
	merged := MergeWindow(incoming, s.activeMessages)
	s.activeMessages = merged
	unread := s.unreadTotal
	window := append([]entity.Message(nil), merged...)
	s.mu.Unlock()

	if s.policy != nil {
		s.policy.ActiveMessagesUpdated(window, conversationID, unread)
	}
}

func (s *Session) onStreamError(gen uint64, err error) {
	s.mu.Lock()
	stale := gen != s.generation
	if !stale {
		s.lastErr = err
	}
	s.mu.Unlock()
	if !stale {
		s.log.Warn("active message stream failed", sl.Err(err))
	}
}

// SendMessage performs an optimistic send on the active conversation:
// the placeholder lands in the window immediately, then is either
// replaced in place by the confirmed message or flipped to ERROR for an
// explicit resend. Offline sends fail fast without a placeholder.
func (s *Session) SendMessage(ctx context.Context, text, imageURL string, replyTo *entity.ReplyRef) (*entity.Message, error) {
	if text == "" && imageURL == "" {
		return nil, entity.InvalidParams("message needs text or an image")
	}
	if !s.svc.Online() {
		return nil, entity.ErrOffline
	}

	s.mu.Lock()
	if s.activeConversationID == "" {
		s.mu.Unlock()
		return nil, entity.InvalidParams("no active conversation")
	}
	placeholder := entity.NewPendingMessage(
		uuid.NewString(),
		s.activeConversationID,
		s.userID, s.name, s.photo,
		text, imageURL, replyTo,
	)
	s.activeMessages = append(s.activeMessages, placeholder)
	s.mu.Unlock()

	return s.settleSend(ctx, placeholder)
}

// settleSend runs the store call for a placeholder already present in
// the window and reconciles the outcome.
func (s *Session) settleSend(ctx context.Context, placeholder entity.Message) (*entity.Message, error) {
	stored, err := s.svc.SendMessage(ctx, placeholder)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexByTempID(s.activeMessages, placeholder.ClientTempID)
	if err != nil {
		if idx >= 0 {
			s.activeMessages[idx].Status = entity.StatusError
		}
		s.lastErr = err
		return nil, err
	}

	if idx >= 0 {
		// replace in place, preserving list position
		s.activeMessages[idx] = *stored
	}
	if s.activeConversation != nil && s.activeConversation.ID == stored.ConversationID {
		s.activeConversation.LastMessage = &entity.LastMessage{
			Text:      stored.Text,
			SenderID:  stored.SenderID,
			Timestamp: stored.Timestamp,
		}
	}
	return stored, nil
}

// ResendFailedMessage resubmits a message stuck in ERROR: the failed
// entry is removed and the send re-runs under the same temp id. Resending
// anything not in ERROR state is a no-op.
func (s *Session) ResendFailedMessage(ctx context.Context, tempID string) (*entity.Message, error) {
	if !s.svc.Online() {
		return nil, entity.ErrOffline
	}

	s.mu.Lock()
	idx := indexByTempID(s.activeMessages, tempID)
	if idx < 0 || s.activeMessages[idx].Status != entity.StatusError {
		s.mu.Unlock()
		return nil, nil
	}
	failed := s.activeMessages[idx]
	s.activeMessages = append(s.activeMessages[:idx], s.activeMessages[idx+1:]...)

	failed.Status = entity.StatusSending
	failed.Timestamp = time.Now()
	s.activeMessages = append(s.activeMessages, failed)
	s.mu.Unlock()

	return s.settleSend(ctx, failed)
}

// MarkConversationAsRead zeroes the active conversation's unread counter
// locally before the store confirms, so the badge never flickers. A
// conversation that is already read skips the store write entirely.
func (s *Session) MarkConversationAsRead(ctx context.Context) error {
	if !s.svc.Online() {
		return entity.ErrOffline
	}

	s.mu.Lock()
	conversationID := s.activeConversationID
	if conversationID == "" {
		s.mu.Unlock()
		return nil
	}

	unread := 0
	if s.activeConversation != nil {
		unread = s.activeConversation.UnreadFor(s.userID)
	}
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			if n := s.conversations[i].UnreadFor(s.userID); n > unread {
				unread = n
			}
		}
	}
	if unread == 0 {
		s.mu.Unlock()
		return nil
	}

	// optimistic zero
	if s.activeConversation != nil && s.activeConversation.UnreadCount != nil {
		s.activeConversation.UnreadCount[s.userID] = 0
	}
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID && s.conversations[i].UnreadCount != nil {
			s.conversations[i].UnreadCount[s.userID] = 0
		}
	}
	s.recomputeUnreadLocked()

	loadedIDs := make([]string, 0, len(s.activeMessages))
	for i := range s.activeMessages {
		if s.activeMessages[i].Confirmed() {
			loadedIDs = append(loadedIDs, s.activeMessages[i].ID)
		}
	}
	total := s.unreadTotal
	s.mu.Unlock()

	if s.policy != nil {
		s.policy.ConversationRead(conversationID, loadedIDs, total)
	}

	if err := s.svc.MarkMessagesAsRead(ctx, conversationID, s.userID); err != nil {
		// keep the optimistic state; the next refresh reconciles
		s.setError(err)
		return err
	}
	return nil
}

// DeleteConversation soft-deletes for this user and drops it from the
// local inbox. Deleting the active conversation also leaves it.
func (s *Session) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := s.svc.DeleteConversation(ctx, conversationID, s.userID); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			break
		}
	}
	s.recomputeUnreadLocked()
	leaveActive := s.activeConversationID == conversationID
	s.mu.Unlock()

	if leaveActive {
		return s.SetActiveConversation(ctx, "")
	}
	return nil
}

// Close tears down the live subscription. The session must not be used
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.generation++
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Conversations returns a deep copy of the inbox.
func (s *Session) Conversations() []entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneConversations(s.conversations)
}

// ActiveMessages returns a copy of the active message window.
func (s *Session) ActiveMessages() []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Message(nil), s.activeMessages...)
}

// ActiveConversationID returns the id currently on screen, "" for none.
func (s *Session) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConversationID
}

// ActiveConversation returns a deep copy of the active conversation, nil
// for none.
func (s *Session) ActiveConversation() *entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeConversation == nil {
		return nil
	}
	conv := s.activeConversation.Clone()
	return &conv
}

// UnreadTotal returns the summed unread counter across the inbox.
func (s *Session) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadTotal
}

// Loading reports whether an inbox refresh is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the most recent recoverable failure, nil after a
// clean refresh.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsOffline reports the connectivity gate as seen by this session.
func (s *Session) IsOffline() bool {
	return !s.svc.Online()
}

// MergeWindow combines an authoritative message window with local state:
// placeholders still awaiting confirmation (or stuck in ERROR) survive
// as long as the authoritative window has not delivered their temp id.
// The result is timestamp-sorted with a stable tie-break.
func MergeWindow(incoming []entity.Message, local []entity.Message) []entity.Message {
	confirmed := make(map[string]struct{}, len(incoming))
	for i := range incoming {
		if incoming[i].ClientTempID != "" {
			confirmed[incoming[i].ClientTempID] = struct{}{}
		}
	}

	merged := append([]entity.Message(nil), incoming...)
	for i := range local {
		m := &local[i]
		if !m.Pending() {
			continue
		}
		if _, ok := confirmed[m.ClientTempID]; ok {
			continue
		}
		merged = append(merged, *m)
	}

	entity.SortMessages(merged)
	return merged
}

func cloneConversations(conversations []entity.Conversation) []entity.Conversation {
	out := make([]entity.Conversation, len(conversations))
	for i := range conversations {
		out[i] = conversations[i].Clone()
	}
	return out
}

func indexByTempID(messages []entity.Message, tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range messages {
		if messages[i].ClientTempID == tempID {
			return i
		}
	}
	return -1
}
