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

type BusinessRequest struct {
	Participant  Party  `json:"participant" validate:"required"`
	BusinessID   string `json:"business_id" validate:"required"`
	BusinessName string `json:"business_name" validate:"required"`
}

// FindOrCreateBusiness returns the single conversation between the caller
// and the other party in the given business context, creating it when it
// does not exist yet. Repeated calls return the same conversation.
func FindOrCreateBusiness(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())

		var req BusinessRequest
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

		conv, err := handler.FindOrCreateBusinessConversation(r.Context(), user, req.Participant, req.BusinessID, req.BusinessName)
		if err != nil {
			log.Error("failed to find or create business conversation", sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(conv))
	}
}
