package file

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

// Download streams a message image. The URL must carry a valid signature
// and an unexpired timestamp; there is no other authentication on this
// route.
func Download(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "id")
		sig := r.URL.Query().Get("sig")
		expires := r.URL.Query().Get("expires")
		if sig == "" || expires == "" {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("Invalid file signature"))
			return
		}

		if !handler.VerifyImageURL(fileID, expires, sig) {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("Invalid file signature"))
			return
		}

		contentType, rc, err := handler.OpenImage(fileID)
		if err != nil {
			log.Error("failed to open image", slog.String("file_id", fileID), sl.Err(err))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("File not found"))
			return
		}
		defer rc.Close()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Cache-Control", "private, max-age=3600")
		if _, err := io.Copy(w, rc); err != nil {
			log.Warn("image download interrupted", slog.String("file_id", fileID), sl.Err(err))
		}
	}
}
