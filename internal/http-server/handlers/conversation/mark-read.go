package conversation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

// MarkRead zeroes the caller's unread counter and flips inbound messages
// to read. Marking an already-read conversation is a no-op.
func MarkRead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		if err := handler.MarkConversationRead(r.Context(), user, id); err != nil {
			log.Error("failed to mark conversation read", slog.String("conversation_id", id), sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(map[string]string{"conversation_id": id}))
	}
}
