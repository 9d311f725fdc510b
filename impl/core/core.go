package core

import (
	"context"
	"io"
	"log/slog"
	"time"

	"BizLink/entity"
	repository "BizLink/internal/database"
	"BizLink/internal/lib/fileurl"
	"BizLink/internal/lib/sl"
	"BizLink/internal/service/chat"
)

type Repository interface {
	CheckToken(ctx context.Context, token string) (*entity.UserAuth, error)
	IssueToken(ctx context.Context, username, name, photo string) (string, error)

	ListMessages(ctx context.Context, conversationID string, limit int) ([]entity.Message, error)

	UploadMessageImage(conversationID, filename string, reader io.Reader, meta repository.ImageMetadata) (string, int64, error)
	DownloadMessageImage(fileID string) (repository.ImageMetadata, io.ReadCloser, error)
}

// Events is the fan-out surface towards connected clients.
type Events interface {
	BroadcastMessage(conv *entity.Conversation, msg *entity.Message)
	BroadcastConversationUpdate(username string, conv *entity.Conversation)
	BroadcastReadReceipt(username, conversationID, readBy string)
}

const authTimeout = 5 * time.Second

// Core wires the transport handlers to the chat domain: authentication,
// per-user sessions, the store-facing service and the event fan-out.
type Core struct {
	repo     Repository
	svc      *chat.Service
	sessions *chat.Manager
	events   Events
	signer   *fileurl.Signer
	window   int
	log      *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log: log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetChatService(svc *chat.Service) {
	c.svc = svc
}

func (c *Core) SetSessionManager(sessions *chat.Manager) {
	c.sessions = sessions
}

func (c *Core) SetEvents(events Events) {
	c.events = events
}

func (c *Core) SetSigner(signer *fileurl.Signer) {
	c.signer = signer
}

func (c *Core) SetMessageWindow(window int) {
	c.window = window
}

// AuthenticateByToken resolves an API token to its user profile.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	return c.repo.CheckToken(ctx, token)
}

// ValidateToken authenticates a WebSocket upgrade and returns the username.
func (c *Core) ValidateToken(token string) (string, error) {
	user, err := c.AuthenticateByToken(token)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// RegisterUser issues a token for the profile, reusing the existing one
// when the username is already registered.
func (c *Core) RegisterUser(ctx context.Context, username, name, photo string) (*entity.UserAuth, error) {
	token, err := c.repo.IssueToken(ctx, username, name, photo)
	if err != nil {
		return nil, err
	}
	return &entity.UserAuth{
		Username: username,
		Name:     name,
		Photo:    photo,
		Token:    token,
	}, nil
}

// HandleMarkRead handles the mark_read event arriving over WebSocket.
func (c *Core) HandleMarkRead(username, conversationID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	return c.MarkConversationRead(ctx, &entity.UserAuth{Username: username}, conversationID)
}
