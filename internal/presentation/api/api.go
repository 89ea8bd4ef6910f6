package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pastejet/pastejet/internal/auth"
	"github.com/pastejet/pastejet/internal/infrastructure/configs"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/infrastructure/ratelimiter"
	"github.com/pastejet/pastejet/internal/infrastructure/ws"
	clipboardsHandler "github.com/pastejet/pastejet/internal/presentation/handler/clipboards"
	dashboardHandler "github.com/pastejet/pastejet/internal/presentation/handler/dashboard"
	healthHandler "github.com/pastejet/pastejet/internal/presentation/handler/health"
	pastesHandler "github.com/pastejet/pastejet/internal/presentation/handler/pastes"
	roomsHandler "github.com/pastejet/pastejet/internal/presentation/handler/rooms"
)

type Application struct {
	config            configs.Config
	authenticator     *auth.Authenticator
	pastesHandler     *pastesHandler.Handler
	clipboardsHandler *clipboardsHandler.Handler
	roomsHandler      *roomsHandler.Handler
	dashboardHandler  *dashboardHandler.Handler
	healthHandler     *healthHandler.Handler
	gateway           *ws.Gateway
	logger            logging.Logger
	metrics           *metrics.Metrics
	ratelimiter       ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	authenticator *auth.Authenticator,
	pastes *pastesHandler.Handler,
	clipboards *clipboardsHandler.Handler,
	rooms *roomsHandler.Handler,
	dashboard *dashboardHandler.Handler,
	health *healthHandler.Handler,
	gateway *ws.Gateway,
	logger logging.Logger,
	m *metrics.Metrics,
	limiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:            config,
		authenticator:     authenticator,
		pastesHandler:     pastes,
		clipboardsHandler: clipboards,
		roomsHandler:      rooms,
		dashboardHandler:  dashboard,
		healthHandler:     health,
		gateway:           gateway,
		logger:            logger,
		metrics:           m,
		ratelimiter:       limiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(app.metricsMiddleware)
	r.Use(app.loggerMiddleware)
	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Anonymous access is allowed here; a bearer token upgrades the
		// caller to an owned identity.
		r.Group(func(r chi.Router) {
			r.Use(app.authenticator.Optional)

			r.Post("/pastes", app.pastesHandler.CreatePasteHandler)
			r.Get("/pastes/{pasteId}", app.pastesHandler.GetPasteHandler)

			r.Post("/clipboards", app.clipboardsHandler.ShareHandler)
			r.Get("/clipboards/{code}", app.clipboardsHandler.GetHandler)

			r.Post("/execute", app.roomsHandler.PlaygroundExecuteHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(app.authenticator.Require)

			r.Get("/pastes", app.pastesHandler.ListPastesHandler)
			r.Delete("/pastes/{pasteId}", app.pastesHandler.DeletePasteHandler)

			r.Get("/clipboards", app.clipboardsHandler.HistoryHandler)
			r.Delete("/clipboards/{code}", app.clipboardsHandler.DeleteHandler)

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", app.roomsHandler.CreateRoomHandler)
				r.Get("/", app.roomsHandler.ListRoomsHandler)

				r.Route("/{roomID}", func(r chi.Router) {
					r.Get("/", app.roomsHandler.GetRoomHandler)
					r.Post("/join", app.roomsHandler.JoinRoomHandler)
					r.Post("/leave", app.roomsHandler.LeaveRoomHandler)
					r.Post("/close", app.roomsHandler.CloseRoomHandler)
					r.Put("/settings", app.roomsHandler.UpdateSettingsHandler)

					r.Get("/members", app.roomsHandler.MembersHandler)
					r.Post("/members", app.roomsHandler.AddMemberHandler)
					r.Delete("/members/{userID}", app.roomsHandler.RemoveMemberHandler)

					r.Post("/mute/{userID}", app.roomsHandler.ToggleMuteHandler)
					r.Post("/mute-all", app.roomsHandler.MuteAllHandler)
					r.Post("/unmute-all", app.roomsHandler.UnmuteAllHandler)

					r.Get("/versions", app.roomsHandler.ListVersionsHandler)
					r.Post("/versions", app.roomsHandler.SaveVersionHandler)
					r.Post("/versions/{versionID}/restore", app.roomsHandler.RestoreVersionHandler)

					r.Get("/messages", app.roomsHandler.ListMessagesHandler)
					r.Post("/messages", app.roomsHandler.SendMessageHandler)

					r.Post("/execute", app.roomsHandler.ExecuteHandler)
					r.Get("/audit", app.roomsHandler.AuditLogHandler)

					r.Get("/ws", app.gateway.HandleRoom)
				})
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/stats", app.dashboardHandler.StatsHandler)
				r.Get("/pastes", app.dashboardHandler.ListPastesHandler)
			})

			r.Get("/profile", app.dashboardHandler.GetProfileHandler)
			r.Put("/profile", app.dashboardHandler.UpdateProfileHandler)
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	return otelhttp.NewHandler(r, "pastejet")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Startup, "signal caught, shutting down",
			map[logging.ExtraKey]any{"Signal": s.String()})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started",
		map[logging.ExtraKey]any{logging.HostIp: srv.Addr})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Startup, "server has stopped",
		map[logging.ExtraKey]any{logging.HostIp: srv.Addr})

	return nil
}
