package poll

import (
	"errors"
	"log/slog"
	"net/http"

	"TableWatch/impl/core"
	"TableWatch/internal/lib/api/response"
	"TableWatch/internal/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	ForcePoll(provider string) error
}

// Force starts an extra availability pass of the provider in the url.
func Force(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		logger := log.With(
			sl.Module("http.handlers.poll"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("provider", provider),
		)

		err := handler.ForcePoll(provider)
		if errors.Is(err, core.ErrUnknownProvider) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Unknown provider"))
			return
		}
		if err != nil {
			logger.Warn("force poll", sl.Err(err))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		logger.Info("poll pass requested")

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.Ok("poll started"))
	}
}
