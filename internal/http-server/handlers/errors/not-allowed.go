package errors

import (
	"log/slog"
	"net/http"

	"TableWatch/internal/lib/api/response"

	"github.com/go-chi/render"
)

func NotAllowed(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("method not allowed", slog.String("method", r.Method), slog.String("path", r.URL.Path))

		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("Method not allowed"))
	}
}
