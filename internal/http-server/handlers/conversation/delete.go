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

// Delete hides the conversation for the caller only. The other
// participant keeps seeing it.
func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		id := chi.URLParam(r, "id")

		if err := handler.DeleteConversation(r.Context(), user, id); err != nil {
			log.Error("failed to delete conversation", slog.String("conversation_id", id), sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(map[string]string{"conversation_id": id}))
	}
}
