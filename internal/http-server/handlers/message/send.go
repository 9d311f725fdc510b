package message

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"BizLink/entity"
	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

type SendRequest struct {
	Text     string           `json:"text"`
	ImageURL string           `json:"image_url"`
	ReplyTo  *entity.ReplyRef `json:"reply_to,omitempty"`
}

// Send appends a message to the conversation. The response carries the
// stored message including the echoed client temp id, so the caller can
// reconcile its optimistic placeholder.
func Send(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		conversationID := chi.URLParam(r, "id")

		var req SendRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		msg, err := handler.SendMessage(r.Context(), user, conversationID, SendParams{
			Text:     req.Text,
			ImageURL: req.ImageURL,
			ReplyTo:  req.ReplyTo,
		})
		if err != nil {
			log.Error("failed to send message",
				slog.String("conversation_id", conversationID),
				sl.Err(err),
			)
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(msg))
	}
}
