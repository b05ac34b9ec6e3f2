package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"TableWatch/internal/config"
	"TableWatch/internal/http-server/handlers/errors"
	"TableWatch/internal/http-server/handlers/poll"
	"TableWatch/internal/http-server/handlers/subscription"
	"TableWatch/internal/http-server/middleware/authenticate"
	"TableWatch/internal/http-server/middleware/timeout"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	subscription.Core
	poll.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  NewRouter(log, handler, hub),
		ErrorLog: httpLog,
	}
	return server
}

// NewRouter mounts the admin api. Metrics and the websocket feed are outside of the bearer auth;
// the feed checks its token from the query string.
func NewRouter(log *slog.Logger, handler Handler, hub *ws.Hub) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Handle("/metrics", promhttp.Handler())

	if hub != nil {
		router.Get("/api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWs(hub, handler, log, w, r)
		})
	}

	router.Group(func(r chi.Router) {
		r.Use(timeout.Timeout(5))
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(authenticate.New(log, handler))

		r.Route("/api/v1", func(v1 chi.Router) {
			v1.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", subscription.List(log, handler))
				r.Post("/remove", subscription.Remove(log, handler))
			})
			v1.Post("/poll/{provider}", poll.Force(log, handler))
		})
	})

	return router
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
