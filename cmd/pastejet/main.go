package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/pastejet/pastejet/internal/auth"
	"github.com/pastejet/pastejet/internal/clipboard"
	"github.com/pastejet/pastejet/internal/dashboard"
	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/configs"
	"github.com/pastejet/pastejet/internal/infrastructure/events"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/messaging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/infrastructure/ratelimiter"
	"github.com/pastejet/pastejet/internal/infrastructure/tracing"
	"github.com/pastejet/pastejet/internal/infrastructure/ws"
	"github.com/pastejet/pastejet/internal/lab"
	"github.com/pastejet/pastejet/internal/paste"
	"github.com/pastejet/pastejet/internal/persistence/db"
	"github.com/pastejet/pastejet/internal/persistence/repository"
	"github.com/pastejet/pastejet/internal/presentation/api"
	clipboardsHandler "github.com/pastejet/pastejet/internal/presentation/handler/clipboards"
	dashboardHandler "github.com/pastejet/pastejet/internal/presentation/handler/dashboard"
	healthHandler "github.com/pastejet/pastejet/internal/presentation/handler/health"
	pastesHandler "github.com/pastejet/pastejet/internal/presentation/handler/pastes"
	roomsHandler "github.com/pastejet/pastejet/internal/presentation/handler/rooms"
	"github.com/pastejet/pastejet/internal/rooms"
	"github.com/pastejet/pastejet/internal/runner"
	"github.com/pastejet/pastejet/internal/store/mongostore"
)

const (
	serviceName = "pastejet-api"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())
	logger.Init()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	mongoClient, err := db.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal(err)
	}
	defer db.DisconnectMongo(context.Background(), mongoClient)

	database := db.GetDatabase(mongoClient, cfg.Mongo)
	st := mongostore.New(database, logger)

	auditRepo := repository.NewRoomAuditLogRepository(database)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal(err)
	}

	var publisher *events.AuditPublisher
	var auditLog domain.RoomAuditRepository

	if cfg.RabbitMQ.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitmq.Close()

		publisher = events.NewAuditPublisher(rabbitmq, logger)
		auditLog = auditRepo

		auditConsumer := events.NewAuditConsumer(rabbitmq, auditRepo, logger)
		if err := auditConsumer.Listen(); err != nil {
			log.Fatal(err)
		}
	}

	m := metrics.NewDefault()

	pasteService := paste.NewService(st, logger, m)
	clipboardService := clipboard.NewService(st, logger)
	roomService := rooms.NewService(st, logger)
	dashboardService := dashboard.NewService(st, logger)

	run := runner.NewClient(cfg.Runner.BaseURL, cfg.Runner.Timeout, logger, m)

	authenticator := auth.New(cfg.Auth.JWTSecret, logger)
	gateway := ws.NewGateway(st, roomService, lab.NewWebRTCPeerFactory(), logger, m)

	pastes := pastesHandler.NewHandler(pasteService)
	clipboards := clipboardsHandler.NewHandler(clipboardService)
	roomsH := roomsHandler.NewHandler(roomService, st, run, publisher, auditLog)
	dashboardH := dashboardHandler.NewHandler(dashboardService)
	healthH := healthHandler.NewHandler()

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	app := api.NewApplication(*cfg, authenticator, pastes, clipboards, roomsH, dashboardH, healthH, gateway, logger, m, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	log.Fatal(app.Run(mux))
}
