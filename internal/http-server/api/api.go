package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BizLink/internal/config"
	"BizLink/internal/http-server/handlers/auth"
	"BizLink/internal/http-server/handlers/conversation"
	"BizLink/internal/http-server/handlers/errors"
	"BizLink/internal/http-server/handlers/file"
	"BizLink/internal/http-server/handlers/message"
	"BizLink/internal/http-server/middleware/authenticate"
	"BizLink/internal/http-server/middleware/timeout"
	"BizLink/internal/lib/sl"
	"BizLink/internal/ws"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	auth.Core
	conversation.Core
	message.Core
	file.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(30))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, handler, log, w, r)
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		// signed URLs carry their own auth
		v1.Get("/files/{id}", file.Download(log, handler))
		v1.Post("/auth/register", auth.Register(log, handler))

		v1.Group(func(private chi.Router) {
			private.Use(authenticate.New(log, handler))

			private.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversation.List(log, handler))
				r.Post("/", conversation.Create(log, handler))
				r.Post("/business", conversation.FindOrCreateBusiness(log, handler))
				r.Get("/{id}", conversation.Get(log, handler))
				r.Delete("/{id}", conversation.Delete(log, handler))
				r.Post("/{id}/read", conversation.MarkRead(log, handler))

				r.Get("/{id}/messages", message.List(log, handler))
				r.Post("/{id}/messages", message.Send(log, handler))
				r.Post("/{id}/messages/resend", message.Resend(log, handler))
				r.Post("/{id}/images", message.UploadImages(log, handler))
			})
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
