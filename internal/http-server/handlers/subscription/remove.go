package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"TableWatch/entity"
	"TableWatch/impl/core"
	"TableWatch/internal/lib/api/cont"
	"TableWatch/internal/lib/api/response"
	"TableWatch/internal/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func Remove(log *slog.Logger, handler Core) http.HandlerFunc {
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

		var req entity.SubscriptionRemoval
		if err := render.Bind(r, &req); err != nil {
			logger.Debug("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			slog.String("subscription_id", req.ID),
			slog.String("chat_id", req.ChatID),
		)
		if user := cont.GetUser(r.Context()); user != nil {
			logger = logger.With(slog.String("user", user.Username))
		}

		sub, err := handler.RemoveSubscription(r.Context(), req)
		if errors.Is(err, core.ErrNotActive) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Subscription not found or not active"))
			return
		}
		if err != nil {
			logger.Error("remove subscription", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to remove subscription"))
			return
		}
		logger.Info("subscription removed")

		render.JSON(w, r, response.Ok(sub))
	}
}
