package message

import (
	"context"
	"io"

	"BizLink/entity"
)

// SendParams is the payload of one outgoing message.
type SendParams struct {
	Text     string
	ImageURL string
	ReplyTo  *entity.ReplyRef
}

// Upload is one file of a multi-image upload request.
type Upload struct {
	Filename string
	MIMEType string
	Reader   io.Reader
}

// UploadResult reports the outcome per uploaded file. A failed item
// carries Error while the rest of the batch still succeeds.
type UploadResult struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Core interface {
	SendMessage(ctx context.Context, user *entity.UserAuth, conversationID string, p SendParams) (*entity.Message, error)
	ResendMessage(ctx context.Context, user *entity.UserAuth, conversationID, tempID string) (*entity.Message, error)
	ListMessages(ctx context.Context, user *entity.UserAuth, conversationID string, limit int) ([]entity.Message, error)
	UploadImages(ctx context.Context, user *entity.UserAuth, conversationID string, uploads []Upload) []UploadResult
}
