package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
	"BizLink/internal/lib/validate"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Photo    string `json:"photo"`
}

// Register issues an API token for a user profile. Registering the same
// username again returns the existing token.
func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
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

		user, err := handler.RegisterUser(r.Context(), req.Username, req.Name, req.Photo)
		if err != nil {
			log.Error("failed to register user", slog.String("username", req.Username), sl.Err(err))
			render.Status(r, response.Status(err))
			render.JSON(w, r, response.Fail(err))
			return
		}

		render.JSON(w, r, response.Ok(user))
	}
}
