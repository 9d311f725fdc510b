package conversation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"BizLink/entity"
	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

type ListResponse struct {
	Conversations []entity.Conversation `json:"conversations"`
	UnreadTotal   int                   `json:"unread_total"`
}

// List returns the caller's inbox newest-first plus the summed unread
// counter.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())

		conversations, unread, err := handler.ListConversations(r.Context(), user)
		if err != nil {
			log.Error("failed to list conversations", sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(ListResponse{
			Conversations: conversations,
			UnreadTotal:   unread,
		}))
	}
}
