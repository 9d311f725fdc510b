package conversation

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

type GetResponse struct {
	Conversation *entity.Conversation `json:"conversation"`
	Messages     []entity.Message     `json:"messages"`
}

// Get opens a conversation: returns it together with the most recent
// message window and subscribes the caller's session to live updates.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		conv, messages, err := handler.OpenConversation(r.Context(), user, id)
		if err != nil {
			log.Error("failed to open conversation", slog.String("conversation_id", id), sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(GetResponse{
			Conversation: conv,
			Messages:     messages,
		}))
	}
}
