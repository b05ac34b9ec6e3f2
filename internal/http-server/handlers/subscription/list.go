package subscription

import (
	"fmt"
	"log/slog"
	"net/http"

	"TableWatch/entity"
	"TableWatch/internal/lib/api/response"
	"TableWatch/internal/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.subscription")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("subscriptions not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Subscriptions not available"))
			return
		}

		filter, err := entity.FilterFromQuery(r)
		if err != nil {
			logger.Debug("invalid filter", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid filter: %v", err)))
			return
		}

		subs, err := handler.ListSubscriptions(r.Context(), *filter)
		if err != nil {
			logger.Error("list subscriptions", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list subscriptions"))
			return
		}
		logger.With(
			slog.Int("count", len(subs)),
		).Debug("list subscriptions")

		if subs == nil {
			subs = []entity.Subscription{}
		}
		render.JSON(w, r, response.Ok(subs))
	}
}
