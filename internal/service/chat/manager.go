package chat

import (
	"log/slog"
	"sync"
	"time"

	"BizLink/entity"
	"BizLink/internal/config"
	"BizLink/internal/lib/sl"
	"BizLink/internal/service/notify"
)

// Manager owns one Session per authenticated user. Sessions are created
// lazily on first use and torn down when the user's last connection goes
// away.
type Manager struct {
	svc     *Service
	cache   InboxCache
	gateway notify.Gateway
	log     *slog.Logger

	refreshTimeout time.Duration
	window         int

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(svc *Service, cache InboxCache, gateway notify.Gateway, conf *config.Config, log *slog.Logger) *Manager {
	return &Manager{
		svc:            svc,
		cache:          cache,
		gateway:        gateway,
		log:            log.With(sl.Module("chat.manager")),
		refreshTimeout: conf.Chat.RefreshTimeout,
		window:         conf.Chat.MessageWindow,
		sessions:       make(map[string]*Session),
	}
}

// Session returns the user's session, creating it on first use.
func (m *Manager) Session(user *entity.UserAuth) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[user.Username]; ok {
		return s
	}

	policy := notify.NewPolicy(user.Username, m.gateway, m.log)
	s := NewSession(user, m.svc, m.cache, policy, m.refreshTimeout, m.window, m.log)
	m.sessions[user.Username] = s
	m.log.Debug("session created", slog.String("user", user.Username))
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(username string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[username]
	return s, ok
}

// Drop closes and removes a user's session.
func (m *Manager) Drop(username string) {
	m.mu.Lock()
	s, ok := m.sessions[username]
	if ok {
		delete(m.sessions, username)
	}
	m.mu.Unlock()

	if ok {
		s.Close()
		m.log.Debug("session dropped", slog.String("user", username))
	}
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
