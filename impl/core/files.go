package core

import (
	"context"
	"io"
	"log/slog"

	"BizLink/entity"
	repository "BizLink/internal/database"
	"BizLink/internal/http-server/handlers/message"
	"BizLink/internal/lib/sl"
)

// UploadImages stores a batch of message images in GridFS and returns a
// signed download URL per file. Files fail independently.
func (c *Core) UploadImages(ctx context.Context, user *entity.UserAuth, conversationID string, uploads []message.Upload) []message.UploadResult {
	results := make([]message.UploadResult, 0, len(uploads))

	if err := c.requireParticipant(ctx, user.Username, conversationID); err != nil {
		for _, u := range uploads {
			results = append(results, message.UploadResult{Filename: u.Filename, Error: err.Error()})
		}
		return results
	}

	for _, u := range uploads {
		fileID, size, err := c.repo.UploadMessageImage(conversationID, u.Filename, u.Reader, repository.ImageMetadata{
			ConversationID: conversationID,
			Uploader:       user.Username,
			MIMEType:       u.MIMEType,
		})
		if err != nil {
			c.log.Warn("image upload failed",
				slog.String("conversation_id", conversationID),
				slog.String("filename", u.Filename),
				sl.Err(err),
			)
			results = append(results, message.UploadResult{Filename: u.Filename, Error: err.Error()})
			continue
		}

		c.log.Debug("image uploaded",
			slog.String("conversation_id", conversationID),
			slog.String("file_id", fileID),
			slog.Int64("size", size),
		)
		results = append(results, message.UploadResult{
			Filename: u.Filename,
			URL:      c.signer.URL(fileID),
		})
	}

	return results
}

// VerifyImageURL checks the signature and expiry of a download link.
func (c *Core) VerifyImageURL(fileID, expires, signature string) bool {
	return c.signer.Verify(fileID, expires, signature)
}

// OpenImage streams a stored image back.
func (c *Core) OpenImage(fileID string) (string, io.ReadCloser, error) {
	meta, rc, err := c.repo.DownloadMessageImage(fileID)
	if err != nil {
		return "", nil, err
	}
	return meta.MIMEType, rc, nil
}
