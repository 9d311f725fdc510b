package message

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

type ResendRequest struct {
	TempID string `json:"temp_id"`
}

// Resend retries a message that previously failed. Resending a message
// that is not in the failed state is a no-op and returns no message.
func Resend(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		conversationID := chi.URLParam(r, "id")

		var req ResendRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.TempID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		msg, err := handler.ResendMessage(r.Context(), user, conversationID, req.TempID)
		if err != nil {
			log.Error("failed to resend message",
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
