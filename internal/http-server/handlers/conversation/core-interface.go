package conversation

import (
	"context"

	"BizLink/entity"
)

// Party identifies the other participant of a new conversation.
type Party struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name"`
	Photo    string `json:"photo"`
}

type Core interface {
	CreateConversation(ctx context.Context, user *entity.UserAuth, other Party, initialText string) (*entity.Conversation, error)
	FindOrCreateBusinessConversation(ctx context.Context, user *entity.UserAuth, other Party, businessID, businessName string) (*entity.Conversation, error)
	ListConversations(ctx context.Context, user *entity.UserAuth) ([]entity.Conversation, int, error)
	OpenConversation(ctx context.Context, user *entity.UserAuth, id string) (*entity.Conversation, []entity.Message, error)
	DeleteConversation(ctx context.Context, user *entity.UserAuth, id string) error
	MarkConversationRead(ctx context.Context, user *entity.UserAuth, id string) error
}
