package conversation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
	"BizLink/internal/lib/validate"
)

type CreateRequest struct {
	Participant    Party  `json:"participant" validate:"required"`
	InitialMessage string `json:"initial_message"`
}

// Create starts a direct conversation with another user, optionally
// sending the first message in the same call.
func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())

		var req CreateRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		conv, err := handler.CreateConversation(r.Context(), user, req.Participant, req.InitialMessage)
		if err != nil {
			log.Error("failed to create conversation", sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(conv))
	}
}
