package message

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

// List returns the most recent messages of a conversation oldest-first.
// The optional ?limit= query caps the window.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		conversationID := chi.URLParam(r, "id")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Invalid limit"))
				return
			}
			limit = n
		}

		messages, err := handler.ListMessages(r.Context(), user, conversationID, limit)
		if err != nil {
			log.Error("failed to list messages",
				slog.String("conversation_id", conversationID),
				sl.Err(err),
			)
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(messages))
	}
}
