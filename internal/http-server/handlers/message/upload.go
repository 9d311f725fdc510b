package message

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"BizLink/internal/lib/api/cont"
	"BizLink/internal/lib/api/response"
	"BizLink/internal/lib/sl"
)

const maxUploadMemory = 8 << 20

// UploadImages accepts a multipart batch of images for a conversation.
// Files fail independently: one oversized or broken file does not abort
// the rest, its result entry carries the error instead.
func UploadImages(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		conversationID := chi.URLParam(r, "id")

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid multipart body"))
			return
		}

		headers := r.MultipartForm.File["images"]
		if len(headers) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("No images attached"))
			return
		}

		uploads := make([]Upload, 0, len(headers))
		var open []io.Closer
		for _, h := range headers {
			f, err := h.Open()
			if err != nil {
				log.Warn("skipping unreadable upload part",
					slog.String("filename", h.Filename),
					sl.Err(err),
				)
				continue
			}
			open = append(open, f)
			uploads = append(uploads, Upload{
				Filename: h.Filename,
				MIMEType: h.Header.Get("Content-Type"),
				Reader:   f,
			})
		}
		defer func() {
			for _, f := range open {
				f.Close()
			}
		}()

		results := handler.UploadImages(r.Context(), user, conversationID, uploads)
		render.JSON(w, r, response.Ok(results))
	}
}
